package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

// Rows is a forward-only result set with positional values.
type Rows interface {
	Columns() []string
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// TradesRepository runs read queries against the trade history database.
type TradesRepository interface {
	// Execute runs query with args. When args are given, placeholders are
	// written as "?" and rebound to the driver's bindvar style; a query
	// without args is sent verbatim. The caller must Close the rows.
	Execute(ctx context.Context, query string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
}

type tradesRepository struct {
	db *sqlx.DB
}

func NewTradesRepository(db *sqlx.DB) TradesRepository {
	return &tradesRepository{db: db}
}

// Execute streams the result; nothing is buffered beyond the driver's own
// network window. Failures are returned as *errs.DatabaseError.
func (r *tradesRepository) Execute(ctx context.Context, query string, args ...any) (Rows, error) {
	// Rebind rewrites every '?', including those inside literals of raw SQL.
	if len(args) > 0 {
		query = r.db.Rebind(query)
	}
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, &errs.DatabaseError{Op: "query", Err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, &errs.DatabaseError{Op: "columns", Err: err}
	}
	return &sqlxRows{rows: rows, cols: cols}, nil
}

func (r *tradesRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &errs.DatabaseError{Op: "ping", Err: err}
	}
	return nil
}

type sqlxRows struct {
	rows *sqlx.Rows
	cols []string
}

func (r *sqlxRows) Columns() []string { return r.cols }
func (r *sqlxRows) Next() bool        { return r.rows.Next() }

// Values copies the current row. []byte values are cloned because the
// driver may reuse its buffer on the next call to Next.
func (r *sqlxRows) Values() ([]any, error) {
	vals, err := r.rows.SliceScan()
	if err != nil {
		return nil, &errs.DatabaseError{Op: "scan", Err: err}
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = append([]byte(nil), b...)
		}
	}
	return vals, nil
}

func (r *sqlxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return &errs.DatabaseError{Op: "iterate", Err: err}
	}
	return nil
}

func (r *sqlxRows) Close() error {
	if err := r.rows.Close(); err != nil {
		return &errs.DatabaseError{Op: "close", Err: err}
	}
	return nil
}
