package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/hrtime"
	"github.com/guttosm/tradeexport/internal/schema"
)

// Map converts one positional row into a TradeRecord using idx.
// The first failing column is reported as a *errs.MappingError carrying the
// row's raw ID; timestamp failures wrap the underlying *errs.FormatError.
//
// Accepted driver values:
//   - integers: int/uint kinds, integral floats, digit strings or []byte
//   - decimals: numeric kinds, decimal strings or []byte (exact)
//   - text: string, []byte, anything else via fmt
//   - timestamps: see hrtime.Decode
//
// NULL maps to a nil pointer / invalid NullDecimal; only ID is mandatory.
func Map(row []any, idx schema.IndexMap) (models.TradeRecord, error) {
	r := &rowReader{row: row, idx: idx}
	r.id = rawText(r.value(schema.ColID))

	var rec models.TradeRecord

	id := r.intCol(schema.ColID)
	if id == nil && r.err == nil {
		r.fail(schema.ColID, errors.New("ID must not be NULL"))
	}
	if id != nil {
		rec.ID = *id
	}
	rec.TradeAccountID = r.intCol(schema.ColTradeAccountID)
	rec.Ticket = r.intCol(schema.ColTicket)
	rec.SymbolName = r.textCol(schema.ColSymbolName)
	rec.Digits = r.intCol(schema.ColDigits)
	rec.Type = r.intCol(schema.ColType)
	rec.Quantity = r.decCol(schema.ColQuantity)
	rec.State = r.intCol(schema.ColState)
	rec.OpenTime = r.timeCol(schema.ColOpenTime)
	rec.OpenPrice = r.decCol(schema.ColOpenPrice)
	rec.OpenRate = r.decCol(schema.ColOpenRate)
	rec.CloseTime = r.timeCol(schema.ColCloseTime)
	rec.ClosePrice = r.decCol(schema.ColClosePrice)
	rec.CloseRate = r.decCol(schema.ColCloseRate)
	rec.StopLoss = r.decCol(schema.ColStopLoss)
	rec.TakeProfit = r.decCol(schema.ColTakeProfit)
	rec.Expiration = r.timeCol(schema.ColExpiration)
	rec.Commission = r.decCol(schema.ColCommission)
	rec.CommissionAgent = r.textCol(schema.ColCommissionAgent)
	rec.Swap = r.decCol(schema.ColSwap)
	rec.Profit = r.decCol(schema.ColProfit)
	rec.Tax = r.decCol(schema.ColTax)
	rec.Magic = r.intCol(schema.ColMagic)
	rec.Comment = r.textCol(schema.ColComment)
	rec.TimeStamp = r.timeCol(schema.ColTimeStamp)

	if r.err != nil {
		return models.TradeRecord{}, r.err
	}
	return rec, nil
}

// rowReader keeps the first conversion error; later calls become no-ops.
type rowReader struct {
	row []any
	idx schema.IndexMap
	id  string
	err error
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil {
		id := r.id
		if id == "" {
			id = "?"
		}
		r.err = &errs.MappingError{RowID: id, Column: col, Err: err}
	}
}

func (r *rowReader) value(col string) any {
	pos, ok := r.idx[col]
	if !ok || pos < 0 || pos >= len(r.row) {
		r.fail(col, fmt.Errorf("no value at position %d (row has %d values)", pos, len(r.row)))
		return nil
	}
	return r.row[pos]
}

func (r *rowReader) intCol(col string) *int64 {
	if r.err != nil {
		return nil
	}
	v, err := toInt64(r.value(col))
	if err != nil {
		r.fail(col, err)
		return nil
	}
	return v
}

func (r *rowReader) decCol(col string) decimal.NullDecimal {
	if r.err != nil {
		return decimal.NullDecimal{}
	}
	v, err := toDecimal(r.value(col))
	if err != nil {
		r.fail(col, err)
	}
	return v
}

func (r *rowReader) textCol(col string) *string {
	if r.err != nil {
		return nil
	}
	v := r.value(col)
	if v == nil {
		return nil
	}
	s := rawText(v)
	return &s
}

func (r *rowReader) timeCol(col string) *time.Time {
	if r.err != nil {
		return nil
	}
	t, err := hrtime.Decode(r.value(col))
	if err != nil {
		r.fail(col, err)
		return nil
	}
	return t
}

func rawText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) (*int64, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int16:
		n = int64(x)
	case int8:
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x > math.MaxInt64 || x < math.MinInt64 {
			return nil, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case string, []byte:
		s := strings.TrimSpace(rawText(x))
		if s == "" {
			return nil, nil
		}
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// DECIMAL(n,0) columns arrive as "5" but DECIMAL(n,2) as "5.00".
			d, derr := decimal.NewFromString(s)
			if derr != nil || !d.IsInteger() {
				return nil, fmt.Errorf("%q is not an integer", s)
			}
			p = d.IntPart()
		}
		n = p
	default:
		return nil, fmt.Errorf("unsupported integer value of type %T", v)
	}
	return &n, nil
}

func toDecimal(v any) (decimal.NullDecimal, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case string, []byte:
		s := strings.TrimSpace(rawText(x))
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		p, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("%q is not a decimal", s)
		}
		d = p
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.NullDecimal{}, fmt.Errorf("%v is not a finite decimal", x)
		}
		d = decimal.NewFromFloat(x)
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return decimal.NullDecimal{}, fmt.Errorf("%v is not a finite decimal", x)
		}
		d = decimal.NewFromFloat32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int32:
		d = decimal.NewFromInt32(x)
	default:
		return decimal.NullDecimal{}, fmt.Errorf("unsupported decimal value of type %T", v)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
