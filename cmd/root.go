package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guttosm/tradeexport/config"
	"github.com/guttosm/tradeexport/internal/app"
	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/export"
	"github.com/guttosm/tradeexport/internal/logger"
	"github.com/guttosm/tradeexport/internal/mapper"
	"github.com/guttosm/tradeexport/internal/postfilter"
	"github.com/guttosm/tradeexport/internal/service"
)

// usageError marks bad flags or arguments; it exits like an invalid filter.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode extends errs.ExitCode with usage errors.
func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return errs.ExitInvalidFilter
	}
	return errs.ExitCode(err)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return errs.ExitOK
	}
	code := exitCode(err)
	_, _ = fmt.Fprintf(stderr, "tradeexport: %v\n", err)
	if code == errs.ExitInvalidFilter {
		_, _ = fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	}
	return code
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// exportFlags mirrors the export command line.
type exportFlags struct {
	sql     string
	sqlFile string

	accountID   int64
	ticket      int64
	symbol      string
	openedFrom  string
	openedTo    string
	closedFrom  string
	closedTo    string
	commentLike string
	limit       int
	offset      int
	orderBy     string
	orderDir    string

	csvOut        string
	jsonl         bool
	onRowError    string
	dropZeroMagic bool
	dropCancelled bool
}

// filterFlagNames lists the flags that select filter mode.
var filterFlagNames = []string{
	"account-id", "ticket", "symbol", "opened-from", "opened-to", "closed-from",
	"closed-to", "comment-like", "limit", "offset", "order-by", "order-dir",
}

// dbFlags maps persistent connection flags to configuration keys.
var dbFlags = []struct{ name, key, usage string }{
	{"db-driver", "DB_DRIVER", "database driver: mysql, postgres, pgx or sqlite3"},
	{"db-host", "DB_HOST", "database host"},
	{"db-user", "DB_USER", "database user"},
	{"db-password", "DB_PASSWORD", "database password"},
	{"db-name", "DB_NAME", "database name (file path for sqlite3)"},
	{"db-sslmode", "DB_SSLMODE", "Postgres sslmode"},
	{"db-table", "DB_TABLE", "trade history table"},
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "tradeexport",
		Short: "Export TradeHistories rows to JSON Lines and/or CSV",
		Long: `Export TradeHistories rows either from a read-only SELECT (--sql, --sql-file)
or from a structured filter (--account-id, --symbol, --opened-from, ...).

JSON Lines go to stdout when --jsonl is set or --csv-out is not given.
--csv-out writes CSV atomically; both outputs can be produced in one pass.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitWithWriter(stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.Flags(), f, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := cmd.PersistentFlags()
	for _, d := range dbFlags {
		pf.String(d.name, "", d.usage)
		_ = viper.BindPFlag(d.key, pf.Lookup(d.name))
	}
	pf.Int("db-port", 0, "database port (driver default when 0)")
	_ = viper.BindPFlag("DB_PORT", pf.Lookup("db-port"))

	bindExportFlags(cmd.Flags(), &f)
	_ = cmd.MarkFlagFilename("sql-file", "sql")
	_ = cmd.MarkFlagFilename("csv-out", "csv")

	cmd.AddCommand(newServeCmd(), newFilterCmd(stdout))
	return cmd
}

// bindExportFlags registers the export flags on fl, writing into f.
func bindExportFlags(fl *pflag.FlagSet, f *exportFlags) {
	fl.StringVar(&f.sql, "sql", "", "read-only SELECT to run")
	fl.StringVar(&f.sqlFile, "sql-file", "", "file containing the SELECT to run")
	fl.Int64Var(&f.accountID, "account-id", 0, "filter: TradeAccountID")
	fl.Int64Var(&f.ticket, "ticket", 0, "filter: Ticket")
	fl.StringVar(&f.symbol, "symbol", "", "filter: SymbolName")
	fl.StringVar(&f.openedFrom, "opened-from", "", "filter: OpenTime >= ISO-8601 UTC (e.g. 2023-02-09T00:00:00Z)")
	fl.StringVar(&f.openedTo, "opened-to", "", "filter: OpenTime < ISO-8601 UTC (...Z)")
	fl.StringVar(&f.closedFrom, "closed-from", "", "filter: CloseTime >= ISO-8601 UTC (...Z)")
	fl.StringVar(&f.closedTo, "closed-to", "", "filter: CloseTime < ISO-8601 UTC (...Z)")
	fl.StringVar(&f.commentLike, "comment-like", "", "filter: Comment contains")
	fl.IntVar(&f.limit, "limit", models.DefaultLimit, "filter: max rows (1-10000)")
	fl.IntVar(&f.offset, "offset", 0, "filter: rows to skip")
	fl.StringVar(&f.orderBy, "order-by", models.DefaultOrderBy, "filter: ID, OpenTime, CloseTime, TimeStamp or Ticket")
	fl.StringVar(&f.orderDir, "order-dir", models.DefaultOrderDir, "filter: ASC or DESC")

	fl.StringVar(&f.csvOut, "csv-out", "", "write CSV to this path")
	fl.BoolVar(&f.jsonl, "jsonl", false, "write JSON Lines to stdout")
	fl.StringVar(&f.onRowError, "on-row-error", "", "abort or skip (default EXPORT_ON_ROW_ERROR)")
	fl.BoolVar(&f.dropZeroMagic, "drop-zero-magic", false, "exclude rows with Magic = 0")
	fl.BoolVar(&f.dropCancelled, "drop-cancelled", false, "exclude rows whose Comment is cancelled")
}

// buildRequest turns flags into a service request. Only flags that were set
// on the command line populate the filter.
func buildRequest(fs *pflag.FlagSet, f exportFlags, cfg config.Config) (service.ExportRequest, error) {
	policyName := f.onRowError
	if policyName == "" {
		policyName = cfg.Export.OnRowError
	}
	policy, err := mapper.ParsePolicy(policyName)
	if err != nil {
		return service.ExportRequest{}, usageError{err}
	}
	req := service.ExportRequest{
		Policy:     policy,
		Exclude:    postfilter.Rules{DropZeroMagic: f.dropZeroMagic, DropCancelled: f.dropCancelled},
		FlushEvery: cfg.Export.FlushEvery,
	}

	if fs.Changed("sql") && f.sqlFile != "" {
		return req, usageError{errors.New("--sql and --sql-file are mutually exclusive")}
	}
	sql := f.sql
	if f.sqlFile != "" {
		b, err := os.ReadFile(f.sqlFile)
		if err != nil {
			return req, &errs.IOError{Op: "read sql file", Err: err}
		}
		sql = string(b)
	}
	if fs.Changed("sql") || f.sqlFile != "" {
		if strings.TrimSpace(sql) == "" {
			return req, &errs.StatementRejectedError{Reason: "empty statement"}
		}
		for _, name := range filterFlagNames {
			if fs.Changed(name) {
				return req, &errs.InvalidFilterError{Field: name, Reason: "cannot be combined with --sql or --sql-file"}
			}
		}
		req.SQL = sql
		return req, nil
	}

	var filter models.TradeFilter
	if fs.Changed("account-id") {
		filter.AccountID = &f.accountID
	}
	if fs.Changed("ticket") {
		filter.Ticket = &f.ticket
	}
	if fs.Changed("symbol") {
		filter.Symbol = &f.symbol
	}
	if fs.Changed("opened-from") {
		filter.OpenedFrom = &f.openedFrom
	}
	if fs.Changed("opened-to") {
		filter.OpenedTo = &f.openedTo
	}
	if fs.Changed("closed-from") {
		filter.ClosedFrom = &f.closedFrom
	}
	if fs.Changed("closed-to") {
		filter.ClosedTo = &f.closedTo
	}
	if fs.Changed("comment-like") {
		filter.CommentLike = &f.commentLike
	}
	if fs.Changed("limit") {
		filter.Limit = &f.limit
	}
	if fs.Changed("offset") {
		filter.Offset = &f.offset
	}
	filter.OrderBy = f.orderBy
	filter.OrderDir = strings.ToUpper(f.orderDir)
	req.Filter = &filter
	return req, nil
}

// output pairs an encoder with the sink it writes to.
type output struct {
	enc  export.Encoder
	sink export.Sink
}

// openOutputs creates the requested sinks: CSV to a file, JSONL to stdout
// when asked for or when no CSV path is given.
func openOutputs(f exportFlags, stdout io.Writer) ([]output, error) {
	var outs []output
	if f.csvOut != "" {
		fsink, err := export.NewFileSink(f.csvOut)
		if err != nil {
			return nil, err
		}
		outs = append(outs, output{enc: export.NewCSVEncoder(fsink), sink: fsink})
	}
	if f.jsonl || f.csvOut == "" {
		s := export.NewStreamSink(stdout)
		outs = append(outs, output{enc: export.NewJSONLEncoder(s), sink: s})
	}
	return outs, nil
}

func runExport(ctx context.Context, fs *pflag.FlagSet, f exportFlags, stdout io.Writer) error {
	if err := config.LoadConfig(); err != nil {
		return usageError{err}
	}
	cfg := config.AppConfig

	req, err := buildRequest(fs, f, cfg)
	if err != nil {
		return err
	}

	db, err := app.OpenDB(cfg)
	if err != nil {
		return &errs.DatabaseError{Op: "connect", Err: err}
	}
	defer func() { _ = db.Close() }()

	svc, err := app.NewExportService(cfg, db)
	if err != nil {
		return usageError{err}
	}

	run, err := svc.Open(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = run.Close() }()

	outs, err := openOutputs(f, stdout)
	if err != nil {
		return err
	}
	encs := make([]export.Encoder, len(outs))
	for i, o := range outs {
		encs[i] = o.enc
	}

	sum, err := run.Stream(ctx, encs...)
	if err != nil {
		for _, o := range outs {
			o.sink.Abort()
		}
		return err
	}
	for _, o := range outs {
		if err := o.sink.Commit(); err != nil {
			for _, rest := range outs {
				rest.sink.Abort()
			}
			return err
		}
	}

	ev := logger.L().Info().Str("mode", sum.Mode).Int("written", sum.Written)
	if f.csvOut != "" {
		ev = ev.Str("csv", f.csvOut)
	}
	ev.Msg("export completed")
	return nil
}
