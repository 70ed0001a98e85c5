package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guttosm/tradeexport/config"
	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/mapper"
	"github.com/guttosm/tradeexport/internal/schema"
)

// newTradeDB creates a SQLite file holding TradeHistories with three rows on
// account 111 (one zero-magic, one cancelled) and one on account 222.
func newTradeDB(t *testing.T, badOpenTime bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	db.MustExec(`CREATE TABLE TradeHistories (` + strings.Join(schema.RequiredColumns, " TEXT, ") + ` TEXT)`)
	insert := `INSERT INTO TradeHistories (` + strings.Join(schema.RequiredColumns, ", ") + `) VALUES (` +
		strings.TrimSuffix(strings.Repeat("?,", len(schema.RequiredColumns)), ",") + `)`
	row := func(id, account, open, closeAt, magic, comment string) {
		db.MustExec(insert,
			id, account, "35997"+id, "EURUSD", "5", "0", "0.01", "5", open, "1.07351",
			"1.07351", closeAt, "1.07351", "0", "0", "0", "19700101000000000", "0", nil, "0",
			"0.5", "0", magic, comment, closeAt)
	}
	secondOpen := "20230209094334000"
	if badOpenTime {
		secondOpen = "2023-02-09"
	}
	row("1", "111", "20230209084334000", "20230209090257000", "3599793", "close hedge by #3599791")
	row("2", "111", secondOpen, "19700101000000000", "0", "")
	row("3", "111", "20230209104334500", "20230209110000000", "7", "Cancelled")
	row("4", "222", "20230209084335000", "20230209090257000", "7", "")
	return path
}

// useDB points configuration at the SQLite file for one test.
func useDB(t *testing.T, path string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DB_NAME", path)
	t.Setenv("EXPORT_ON_ROW_ERROR", "abort")
	t.Setenv("EXPORT_FLUSH_EVERY", "2")
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = execute(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func jsonlIDs(t *testing.T, out string) []string {
	t.Helper()
	var ids []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		ids = append(ids, string(m["ID"]))
	}
	return ids
}

func TestExecute_Export(t *testing.T) {
	path := newTradeDB(t, false)

	cases := []struct {
		name string
		args []string
		ids  []string
	}{
		{name: "default filter to stdout", args: nil, ids: []string{"1", "4", "2", "3"}},
		{name: "account and order", args: []string{"--account-id", "111", "--order-by", "ID", "--order-dir", "desc"}, ids: []string{"3", "2", "1"}},
		{name: "limit and offset", args: []string{"--order-by", "ID", "--limit", "2", "--offset", "1"}, ids: []string{"2", "3"}},
		{name: "comment like", args: []string{"--comment-like", "hedge"}, ids: []string{"1"}},
		{name: "opened window", args: []string{"--opened-from", "2023-02-09T09:00:00Z", "--opened-to", "2023-02-09T10:43:34.500Z"}, ids: []string{"2"}},
		{name: "raw sql", args: []string{"--sql", "SELECT * FROM TradeHistories WHERE Ticket = '359974'"}, ids: []string{"4"}},
		{name: "exclusion rules", args: []string{"--order-by", "ID", "--drop-zero-magic", "--drop-cancelled"}, ids: []string{"1", "4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			useDB(t, path)
			code, out, stderr := run(t, tc.args...)
			if code != errs.ExitOK {
				t.Fatalf("exit=%d stderr=%s", code, stderr)
			}
			got := jsonlIDs(t, out)
			if strings.Join(got, ",") != strings.Join(tc.ids, ",") {
				t.Fatalf("ids=%v, want %v", got, tc.ids)
			}
		})
	}
}

func TestExecute_SQLFile(t *testing.T) {
	path := newTradeDB(t, false)
	useDB(t, path)

	sqlPath := filepath.Join(t.TempDir(), "q.sql")
	if err := os.WriteFile(sqlPath, []byte("-- account 222\nSELECT * FROM TradeHistories WHERE TradeAccountID = '222'"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, out, stderr := run(t, "--sql-file", sqlPath)
	if code != errs.ExitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	if got := jsonlIDs(t, out); len(got) != 1 || got[0] != "4" {
		t.Fatalf("ids=%v", got)
	}
}

func TestExecute_CSVAndJSONLInOnePass(t *testing.T) {
	path := newTradeDB(t, false)
	useDB(t, path)

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	code, out, stderr := run(t, "--csv-out", csvPath, "--jsonl", "--order-by", "ID")
	if code != errs.ExitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	if got := jsonlIDs(t, out); len(got) != 4 {
		t.Fatalf("jsonl ids=%v", got)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer func() { _ = f.Close() }()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(recs) != 5 || len(recs[0]) != len(schema.ExportColumns) {
		t.Fatalf("csv shape rows=%d cols=%d", len(recs), len(recs[0]))
	}
	if recs[1][0] != "1" || recs[2][11] != "" {
		t.Fatalf("unexpected csv rows: %v / %v", recs[1], recs[2])
	}
}

func TestExecute_CSVOnlyLeavesStdoutEmpty(t *testing.T) {
	path := newTradeDB(t, false)
	useDB(t, path)

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	code, out, stderr := run(t, "--csv-out", csvPath)
	if code != errs.ExitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	if out != "" {
		t.Fatalf("stdout should be empty, got %q", out)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("csv not written: %v", err)
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	good := newTradeDB(t, false)
	bad := newTradeDB(t, true)
	missingDir := filepath.Join(t.TempDir(), "nope", "out.csv")

	cases := []struct {
		name string
		db   string
		args []string
		code int
	}{
		{name: "unknown flag", db: good, args: []string{"--bogus"}, code: errs.ExitInvalidFilter},
		{name: "positional argument", db: good, args: []string{"extra"}, code: errs.ExitInvalidFilter},
		{name: "sql with filter flag", db: good, args: []string{"--sql", "SELECT * FROM TradeHistories", "--symbol", "EURUSD"}, code: errs.ExitInvalidFilter},
		{name: "limit zero", db: good, args: []string{"--limit", "0"}, code: errs.ExitInvalidFilter},
		{name: "bad iso time", db: good, args: []string{"--opened-from", "2023-02-09"}, code: errs.ExitInvalidFilter},
		{name: "bad policy", db: good, args: []string{"--on-row-error", "retry"}, code: errs.ExitInvalidFilter},
		{name: "write statement", db: good, args: []string{"--sql", "DELETE FROM TradeHistories"}, code: errs.ExitStatementRejected},
		{name: "stacked statement", db: good, args: []string{"--sql", "SELECT 1; DROP TABLE TradeHistories"}, code: errs.ExitStatementRejected},
		{name: "missing columns", db: good, args: []string{"--sql", "SELECT ID, Ticket FROM TradeHistories"}, code: errs.ExitMissingColumns},
		{name: "unknown table", db: good, args: []string{"--sql", "SELECT * FROM Nope"}, code: errs.ExitDatabase},
		{name: "bad row aborts", db: bad, args: []string{"--order-by", "ID"}, code: errs.ExitMapping},
		{name: "unwritable csv", db: good, args: []string{"--csv-out", missingDir}, code: errs.ExitIO},
		{name: "missing sql file", db: good, args: []string{"--sql-file", filepath.Join(t.TempDir(), "missing.sql")}, code: errs.ExitIO},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			useDB(t, tc.db)
			code, _, stderr := run(t, tc.args...)
			if code != tc.code {
				t.Fatalf("exit=%d, want %d (stderr=%s)", code, tc.code, stderr)
			}
			if !strings.Contains(stderr, "tradeexport: ") {
				t.Fatalf("stderr lacks error line: %s", stderr)
			}
		})
	}
}

func TestExecute_MappingErrorLeavesNoCSV(t *testing.T) {
	useDB(t, newTradeDB(t, true))
	csvPath := filepath.Join(t.TempDir(), "out.csv")

	code, _, _ := run(t, "--csv-out", csvPath, "--order-by", "ID")
	if code != errs.ExitMapping {
		t.Fatalf("exit=%d, want %d", code, errs.ExitMapping)
	}
	if _, err := os.Stat(csvPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial csv left behind: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(csvPath))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestExecute_SkipPolicy(t *testing.T) {
	useDB(t, newTradeDB(t, true))

	code, out, stderr := run(t, "--order-by", "ID", "--on-row-error", "skip")
	if code != errs.ExitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	if got := jsonlIDs(t, out); strings.Join(got, ",") != "1,3,4" {
		t.Fatalf("ids=%v", got)
	}
	if !strings.Contains(stderr, `"row_id":"2"`) {
		t.Fatalf("skipped row not logged: %s", stderr)
	}
}

func TestBuildRequest(t *testing.T) {
	cfg := config.Config{Export: config.ExportConfig{OnRowError: "skip", FlushEvery: 7}}

	parse := func(t *testing.T, args ...string) (*pflag.FlagSet, exportFlags) {
		t.Helper()
		var f exportFlags
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		bindExportFlags(fs, &f)
		if err := fs.Parse(args); err != nil {
			t.Fatalf("parse: %v", err)
		}
		return fs, f
	}

	t.Run("defaults come from config", func(t *testing.T) {
		fs, f := parse(t)
		req, err := buildRequest(fs, f, cfg)
		if err != nil {
			t.Fatalf("buildRequest: %v", err)
		}
		if req.Policy != mapper.PolicySkip || req.FlushEvery != 7 || req.SQL != "" || req.Filter == nil {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Filter.Limit != nil || req.Filter.AccountID != nil || req.Filter.OrderBy != "OpenTime" {
			t.Fatalf("unset flags leaked into filter: %+v", *req.Filter)
		}
	})

	t.Run("only changed flags populate the filter", func(t *testing.T) {
		fs, f := parse(t, "--account-id", "0", "--symbol", "EURUSD", "--limit", "5", "--order-dir", "desc", "--on-row-error", "abort")
		req, err := buildRequest(fs, f, cfg)
		if err != nil {
			t.Fatalf("buildRequest: %v", err)
		}
		ff := req.Filter
		if ff.AccountID == nil || *ff.AccountID != 0 || ff.Symbol == nil || *ff.Symbol != "EURUSD" {
			t.Fatalf("unexpected filter: %+v", *ff)
		}
		if ff.Limit == nil || *ff.Limit != 5 || ff.Ticket != nil || ff.OrderDir != "DESC" {
			t.Fatalf("unexpected filter: %+v", *ff)
		}
		if req.Policy != mapper.PolicyAbort {
			t.Fatalf("policy=%q", req.Policy)
		}
	})

	t.Run("sql mode carries exclusion rules", func(t *testing.T) {
		fs, f := parse(t, "--sql", "SELECT * FROM TradeHistories", "--drop-cancelled")
		req, err := buildRequest(fs, f, cfg)
		if err != nil {
			t.Fatalf("buildRequest: %v", err)
		}
		if req.Filter != nil || req.SQL == "" || !req.Exclude.DropCancelled || req.Exclude.DropZeroMagic {
			t.Fatalf("unexpected request: %+v", req)
		}
	})

	errCases := []struct {
		name string
		args []string
		code int
	}{
		{name: "sql and sql-file", args: []string{"--sql", "SELECT 1", "--sql-file", "x.sql"}, code: errs.ExitInvalidFilter},
		{name: "sql with limit", args: []string{"--sql", "SELECT 1", "--limit", "3"}, code: errs.ExitInvalidFilter},
		{name: "empty sql", args: []string{"--sql", "  "}, code: errs.ExitStatementRejected},
		{name: "bad policy", args: []string{"--on-row-error", "ignore"}, code: errs.ExitInvalidFilter},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			fs, f := parse(t, tc.args...)
			_, err := buildRequest(fs, f, cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := exitCode(err); got != tc.code {
				t.Fatalf("exit=%d, want %d (%v)", got, tc.code, err)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, errs.ExitOK},
		{usageError{errors.New("bad flag")}, errs.ExitInvalidFilter},
		{&errs.DatabaseError{Op: "connect", Err: errors.New("refused")}, errs.ExitDatabase},
		{errors.New("boom"), errs.ExitUnexpected},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v)=%d, want %d", tc.err, got, tc.want)
		}
	}
}
