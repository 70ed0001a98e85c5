package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/postfilter"
)

var errInplaceWithOutput = errors.New("OUTPUT cannot be combined with --inplace")

func formatFilterResult(path string, st postfilter.Stats) string {
	return fmt.Sprintf("%s: kept %d of %d rows\n", path, st.Written, st.Read)
}

func newFilterCmd(stdout io.Writer) *cobra.Command {
	var (
		inplace       bool
		keepZero      bool
		keepCancelled bool
	)

	cmd := &cobra.Command{
		Use:   "filter INPUT [OUTPUT]",
		Short: "Drop zero-magic and cancelled rows from an exported CSV",
		Long: `Reads a CSV produced by --csv-out and drops rows whose Magic is 0 or whose
Comment is "cancelled"/"canceled". Without OUTPUT the result is written to
INPUT.filtered.csv; --inplace replaces INPUT.`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var output string
			if len(args) == 2 {
				output = args[1]
			}
			if inplace && output != "" {
				return usageError{errInplaceWithOutput}
			}

			rules := postfilter.Rules{DropZeroMagic: !keepZero, DropCancelled: !keepCancelled}
			path, st, err := postfilter.FilterFile(cmd.Context(), args[0], output, inplace, rules)
			if err != nil {
				return &errs.IOError{Op: "filter", Err: err}
			}
			_, err = io.WriteString(stdout, formatFilterResult(path, st))
			return err
		},
	}
	cmd.Flags().BoolVar(&inplace, "inplace", false, "replace INPUT with the filtered result")
	cmd.Flags().BoolVar(&keepZero, "keep-zero-magic", false, "do not drop rows with Magic = 0")
	cmd.Flags().BoolVar(&keepCancelled, "keep-cancelled", false, "do not drop cancelled rows")
	return cmd
}
