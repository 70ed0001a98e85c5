package service

import (
	"context"
	"errors"
	"time"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/export"
	"github.com/guttosm/tradeexport/internal/logger"
	"github.com/guttosm/tradeexport/internal/mapper"
	"github.com/guttosm/tradeexport/internal/postfilter"
	"github.com/guttosm/tradeexport/internal/querybuilder"
	"github.com/guttosm/tradeexport/internal/schema"
	"github.com/guttosm/tradeexport/internal/sqlguard"
	"github.com/guttosm/tradeexport/internal/storage"
)

// Export modes reported in models.ExportSummary.
const (
	ModeSQL    = "sql"
	ModeFilter = "filter"
)

// ExportRequest describes one export run. SQL and Filter are mutually
// exclusive; with neither set the default filter is used.
type ExportRequest struct {
	SQL        string
	Filter     *models.TradeFilter
	Policy     mapper.RowErrorPolicy
	Exclude    postfilter.Rules
	FlushEvery int
}

// ExportService runs the query → validate → map → encode pipeline.
type ExportService interface {
	// Open validates the request, runs the query and checks the result
	// columns. Every error that can happen before the first record is
	// returned here, so callers can still choose how to report it.
	Open(ctx context.Context, req ExportRequest) (*Run, error)
	// Export is Open followed by Run.Stream and Run.Close.
	Export(ctx context.Context, req ExportRequest, encs ...export.Encoder) (models.ExportSummary, error)
	Ping(ctx context.Context) error
}

type exportService struct {
	repo    storage.TradesRepository
	builder *querybuilder.Builder
}

func NewExportService(repo storage.TradesRepository, builder *querybuilder.Builder) ExportService {
	if builder == nil {
		builder, _ = querybuilder.New(querybuilder.DefaultTable)
	}
	return &exportService{repo: repo, builder: builder}
}

func (s *exportService) Open(ctx context.Context, req ExportRequest) (*Run, error) {
	if req.SQL != "" && req.Filter != nil {
		return nil, &errs.InvalidFilterError{Field: "sql", Reason: "cannot be combined with filter fields"}
	}

	mode, query, args := ModeSQL, req.SQL, []any(nil)
	if req.SQL != "" {
		if err := sqlguard.Validate(req.SQL); err != nil {
			return nil, err
		}
	} else {
		mode = ModeFilter
		var f models.TradeFilter
		if req.Filter != nil {
			f = *req.Filter
		}
		q, err := s.builder.Build(f)
		if err != nil {
			return nil, err
		}
		query, args = q.SQL, q.Args
	}

	start := time.Now()
	logger.L().Debug().Str("mode", mode).Str("sql", query).Int("args", len(args)).Msg("executing export query")

	rows, err := s.repo.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	idx, err := schema.Validate(rows.Columns())
	if err != nil {
		_ = rows.Close()
		return nil, err
	}

	cur := mapper.NewCursor(rows, idx, mapper.Options{Policy: req.Policy, Exclude: req.Exclude})
	return &Run{mode: mode, cur: cur, src: &primedSource{Cursor: cur}, flushEvery: req.FlushEvery, start: start}, nil
}

func (s *exportService) Export(ctx context.Context, req ExportRequest, encs ...export.Encoder) (models.ExportSummary, error) {
	run, err := s.Open(ctx, req)
	if err != nil {
		return models.ExportSummary{}, err
	}
	defer func() { _ = run.Close() }()
	return run.Stream(ctx, encs...)
}

func (s *exportService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Run is an opened export whose rows have not been consumed yet.
type Run struct {
	mode       string
	cur        *mapper.Cursor
	src        *primedSource
	primed     bool
	flushEvery int
	start      time.Time
}

// Mode is ModeSQL or ModeFilter.
func (r *Run) Mode() string { return r.mode }

// Prime pulls the first record ahead of Stream so a failure on it can be
// reported before any output is committed. An empty result is not an error.
// Calling Prime more than once is a no-op.
func (r *Run) Prime() error {
	if r.primed {
		return nil
	}
	r.primed = true
	if r.cur.Next() {
		r.src.held = true
		return nil
	}
	err := r.cur.Err()
	if err == nil {
		return nil
	}
	if !isTyped(err) {
		err = &errs.DatabaseError{Op: "iterate", Err: err}
	}
	logger.L().Error().Err(err).Str("mode", r.mode).Msg("export failed on first row")
	return err
}

// Stream drains the cursor into encs. The summary is filled in even when
// an error stops the run.
func (r *Run) Stream(ctx context.Context, encs ...export.Encoder) (models.ExportSummary, error) {
	n, err := export.Copy(ctx, r.src, r.flushEvery, encs...)

	st := r.cur.Stats()
	sum := models.ExportSummary{
		Mode:     r.mode,
		Written:  n,
		Skipped:  st.Skipped,
		Excluded: st.Excluded,
		Elapsed:  time.Since(r.start),
	}

	ev := logger.L().Info()
	if err != nil {
		ev = logger.L().Error().Err(err)
	}
	ev.Str("mode", sum.Mode).
		Int("rows", st.Read).
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Int("excluded", sum.Excluded).
		Dur("elapsed", sum.Elapsed).
		Msg("export finished")

	if err != nil && !isTyped(err) {
		// context cancellation and other driver-level failures surface as
		// database errors since they happened while pulling rows
		err = &errs.DatabaseError{Op: "iterate", Err: err}
	}
	return sum, err
}

// Close releases the underlying rows. Safe to call more than once.
func (r *Run) Close() error { return r.cur.Close() }

// primedSource replays the record fetched by Prime before resuming the cursor.
type primedSource struct {
	*mapper.Cursor
	held bool
}

func (p *primedSource) Next() bool {
	if p.held {
		p.held = false
		return true
	}
	return p.Cursor.Next()
}

func isTyped(err error) bool {
	var (
		me *errs.MappingError
		de *errs.DatabaseError
		ie *errs.IOError
	)
	return errors.As(err, &me) || errors.As(err, &de) || errors.As(err, &ie)
}
