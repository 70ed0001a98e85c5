package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/logger"
	"github.com/guttosm/tradeexport/internal/postfilter"
	"github.com/guttosm/tradeexport/internal/schema"
)

// RowErrorPolicy decides what happens when a single row fails to map.
type RowErrorPolicy string

const (
	// PolicyAbort stops the export at the first bad row (default).
	PolicyAbort RowErrorPolicy = "abort"
	// PolicySkip logs the bad row and continues with the next one.
	PolicySkip RowErrorPolicy = "skip"
)

// ParsePolicy accepts "abort", "skip" or "" (abort).
func ParsePolicy(s string) (RowErrorPolicy, error) {
	switch RowErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown row error policy %q (want abort or skip)", s)
	}
}

// RowSource is the positional row stream produced by a query executor.
type RowSource interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// Options configures a Cursor.
type Options struct {
	Policy     RowErrorPolicy
	Exclude    postfilter.Rules
	OnRowError func(error) // called for every row error, skipped or not
}

// Stats counts what a Cursor did with the rows it pulled.
type Stats struct {
	Read     int
	Yielded  int
	Skipped  int
	Excluded int
}

// Cursor lazily maps rows into records, one per Next call, so memory use is
// independent of the result size. It is not safe for concurrent use.
//
//	cur := mapper.NewCursor(rows, idx, mapper.Options{})
//	defer cur.Close()
//	for cur.Next() {
//	    rec := cur.Record()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	rows   RowSource
	idx    schema.IndexMap
	opts   Options
	rec    models.TradeRecord
	err    error
	done   bool
	closed bool
	stats  Stats
}

// NewCursor wraps rows; idx must come from schema.Validate on the same result.
func NewCursor(rows RowSource, idx schema.IndexMap, opts Options) *Cursor {
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	return &Cursor{rows: rows, idx: idx, opts: opts}
}

// Next advances to the next exportable record. It returns false at the end of
// the rows, on a source error, or on a row error under PolicyAbort; Err tells
// them apart.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	for c.rows.Next() {
		vals, err := c.rows.Values()
		if err != nil {
			return c.stop(err)
		}
		c.stats.Read++

		rec, err := Map(vals, c.idx)
		if err != nil {
			c.reportRowError(err)
			if c.opts.Policy == PolicySkip {
				c.stats.Skipped++
				continue
			}
			return c.stop(err)
		}

		if c.opts.Exclude.Excludes(rec) {
			c.stats.Excluded++
			logger.L().Debug().Int64("row_id", rec.ID).Msg("row excluded by post-filter")
			continue
		}

		c.rec = rec
		c.stats.Yielded++
		return true
	}
	if err := c.rows.Err(); err != nil {
		return c.stop(err)
	}
	c.done = true
	return false
}

// Record returns the record loaded by the last successful Next.
func (c *Cursor) Record() models.TradeRecord { return c.rec }

// Err returns the error that ended iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Stats returns the counters accumulated so far.
func (c *Cursor) Stats() Stats { return c.stats }

// Close releases the underlying rows. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.done = true
	return c.rows.Close()
}

func (c *Cursor) stop(err error) bool {
	c.err = err
	c.done = true
	c.rec = models.TradeRecord{}
	return false
}

func (c *Cursor) reportRowError(err error) {
	ev := logger.L().Warn().Err(err).Str("policy", string(c.opts.Policy))
	var me *errs.MappingError
	if errors.As(err, &me) {
		ev = ev.Str("row_id", me.RowID).Str("column", me.Column)
	}
	ev.Msg("row mapping failed")

	if c.opts.OnRowError != nil {
		c.opts.OnRowError(err)
	}
}
