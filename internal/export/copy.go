package export

import (
	"context"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
)

// DefaultFlushEvery is the flush window used when Copy is given n <= 0.
const DefaultFlushEvery = 500

// Source is the pull side of the pipeline; *mapper.Cursor satisfies it.
type Source interface {
	Next() bool
	Record() models.TradeRecord
	Err() error
}

// Copy writes every record of src, in order, to each encoder. Headers are
// written before the first record so an empty result still yields a valid
// CSV file. Encoders are flushed every flushEvery records and at the end.
//
// Encoder failures are returned as *errs.IOError; the error that stopped src
// is returned unchanged. The count of records written is always returned.
func Copy(ctx context.Context, src Source, flushEvery int, encs ...Encoder) (int, error) {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	for _, e := range encs {
		if err := e.WriteHeader(); err != nil {
			return 0, &errs.IOError{Op: "write header", Err: err}
		}
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !src.Next() {
			break
		}
		rec := src.Record()
		for _, e := range encs {
			if err := e.Encode(rec); err != nil {
				return n, &errs.IOError{Op: "write record", Err: err}
			}
		}
		n++
		if n%flushEvery == 0 {
			if err := flushAll(encs); err != nil {
				return n, err
			}
		}
	}
	if err := src.Err(); err != nil {
		// keep what was already encoded visible for stream sinks
		_ = flushAll(encs)
		return n, err
	}
	return n, flushAll(encs)
}

func flushAll(encs []Encoder) error {
	for _, e := range encs {
		if err := e.Flush(); err != nil {
			return &errs.IOError{Op: "flush", Err: err}
		}
	}
	return nil
}
