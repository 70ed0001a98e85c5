package postfilter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/logger"
	"github.com/guttosm/tradeexport/internal/schema"
)

// cancelledTokens holds both spellings.
var cancelledTokens = map[string]struct{}{
	"cancelled": {},
	"canceled":  {},
}

// Rules selects which rows are dropped from an export.
type Rules struct {
	DropZeroMagic bool // drop rows whose Magic is 0
	DropCancelled bool // drop rows whose Comment is "cancelled"/"canceled"
}

// All enables every rule.
var All = Rules{DropZeroMagic: true, DropCancelled: true}

// Enabled reports whether any rule is active.
func (r Rules) Enabled() bool {
	return r.DropZeroMagic || r.DropCancelled
}

// Excludes reports whether rec must be dropped. NULL values never match.
func (r Rules) Excludes(rec models.TradeRecord) bool {
	if r.DropZeroMagic && rec.Magic != nil && *rec.Magic == 0 {
		return true
	}
	if r.DropCancelled && rec.Comment != nil && IsCancelledComment(*rec.Comment) {
		return true
	}
	return false
}

// IsCancelledComment matches "cancelled" or "canceled", ignoring case and
// surrounding whitespace.
func IsCancelledComment(s string) bool {
	_, ok := cancelledTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// isZeroMagic treats unparseable cells as "not zero".
func isZeroMagic(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && v == 0
}

// Stats counts rows read from and written to a filtered CSV.
type Stats struct {
	Read    int
	Written int
}

// FilterCSV streams a previously exported CSV from in to out, dropping rows
// matched by r. The header is located case-insensitively: a missing Magic
// column is an error, a missing Comment column disables the cancelled rule.
func FilterCSV(ctx context.Context, in io.Reader, out io.Writer, r Rules) (Stats, error) {
	var st Stats
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cw := csv.NewWriter(out)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return st, errors.New("empty input: missing header")
		}
		return st, fmt.Errorf("read header: %w", err)
	}

	magicIdx, commentIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case strings.ToLower(schema.ColMagic):
			if magicIdx < 0 {
				magicIdx = i
			}
		case strings.ToLower(schema.ColComment):
			if commentIdx < 0 {
				commentIdx = i
			}
		}
	}
	if magicIdx < 0 {
		return st, fmt.Errorf("missing %q column in CSV header", schema.ColMagic)
	}
	if commentIdx < 0 {
		logger.L().Warn().Msg("no Comment column, applying only the zero-magic rule")
	}

	if err := cw.Write(header); err != nil {
		return st, fmt.Errorf("write header: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return st, fmt.Errorf("read line after %d: %w", st.Read+1, err)
		}
		st.Read++

		if r.DropZeroMagic && magicIdx < len(rec) && isZeroMagic(rec[magicIdx]) {
			continue
		}
		if r.DropCancelled && commentIdx >= 0 && commentIdx < len(rec) && IsCancelledComment(rec[commentIdx]) {
			continue
		}
		if err := cw.Write(rec); err != nil {
			return st, fmt.Errorf("write line %d: %w", st.Read+1, err)
		}
		st.Written++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return st, fmt.Errorf("flush: %w", err)
	}
	return st, nil
}

// DefaultOutputPath derives "<name>.filtered.csv" next to input.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".filtered.csv"
}

// FilterFile filters input into output (DefaultOutputPath when empty). With
// inplace, the result is written to a temporary file in the same directory
// and renamed over input. It returns the path written.
func FilterFile(ctx context.Context, input, output string, inplace bool, r Rules) (string, Stats, error) {
	if inplace && output != "" {
		return "", Stats{}, errors.New("cannot combine an output path with in-place mode")
	}
	src, err := os.Open(input)
	if err != nil {
		return "", Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = src.Close() }()

	target := output
	switch {
	case inplace:
		target = input
	case target == "":
		target = DefaultOutputPath(input)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".filter-*.csv")
	if err != nil {
		return "", Stats{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	st, err := FilterCSV(ctx, src, tmp, r)
	if err != nil {
		return "", st, err
	}
	if err := tmp.Close(); err != nil {
		return "", st, fmt.Errorf("close temp file: %w", err)
	}
	_ = src.Close()
	if err := os.Rename(tmpName, target); err != nil {
		return "", st, fmt.Errorf("replace %s: %w", target, err)
	}
	committed = true

	logger.L().Info().Int("read", st.Read).Int("written", st.Written).Str("output", target).Msg("csv filtered")
	return target, st, nil
}
