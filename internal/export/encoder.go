package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/hrtime"
	"github.com/guttosm/tradeexport/internal/schema"
)

// Encoder serializes records to one output format.
type Encoder interface {
	WriteHeader() error
	Encode(rec models.TradeRecord) error
	Flush() error
}

// CSVEncoder writes RFC 4180 CSV with a header of schema.ExportColumns.
type CSVEncoder struct {
	w   *csv.Writer
	row []string
}

// NewCSVEncoder returns a CSVEncoder buffering into w.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{w: csv.NewWriter(w), row: make([]string, len(schema.ExportColumns))}
}

// WriteHeader writes the column names row.
func (e *CSVEncoder) WriteHeader() error {
	return e.w.Write(schema.ExportColumns)
}

// Encode writes rec as one row in schema.ExportColumns order. Null fields are
// empty cells.
func (e *CSVEncoder) Encode(rec models.TradeRecord) error {
	r := e.row[:0]
	r = append(r,
		strconv.FormatInt(rec.ID, 10),
		intCell(rec.TradeAccountID),
		intCell(rec.Ticket),
		textCell(rec.SymbolName),
		intCell(rec.Digits),
		intCell(rec.Type),
		decCell(rec.Quantity),
		intCell(rec.State),
		timeCell(rec.OpenTime),
		decCell(rec.OpenPrice),
		decCell(rec.OpenRate),
		timeCell(rec.CloseTime),
		decCell(rec.ClosePrice),
		decCell(rec.CloseRate),
		decCell(rec.StopLoss),
		decCell(rec.TakeProfit),
		timeCell(rec.Expiration),
		decCell(rec.Commission),
		textCell(rec.CommissionAgent),
		decCell(rec.Swap),
		decCell(rec.Profit),
		decCell(rec.Tax),
		intCell(rec.Magic),
		textCell(rec.Comment),
		timeCell(rec.TimeStamp),
		strconv.FormatBool(rec.IsClosed()),
	)
	return e.w.Write(r)
}

// Flush pushes buffered rows to the writer and reports any earlier write error.
func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func textCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func decCell(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}

func timeCell(v *time.Time) string {
	if v == nil {
		return ""
	}
	return hrtime.Format(*v)
}

// jsonRecord fixes the key order of a JSONL line. Decimals are raw number
// literals so no precision is lost through float64.
type jsonRecord struct {
	ID              int64        `json:"ID"`
	TradeAccountID  *int64       `json:"TradeAccountID"`
	Ticket          *int64       `json:"Ticket"`
	SymbolName      *string      `json:"SymbolName"`
	Digits          *int64       `json:"Digits"`
	Type            *int64       `json:"Type"`
	Quantity        *json.Number `json:"Quantity"`
	State           *int64       `json:"State"`
	OpenTime        *string      `json:"OpenTime"`
	OpenPrice       *json.Number `json:"OpenPrice"`
	OpenRate        *json.Number `json:"OpenRate"`
	CloseTime       *string      `json:"CloseTime"`
	ClosePrice      *json.Number `json:"ClosePrice"`
	CloseRate       *json.Number `json:"CloseRate"`
	StopLoss        *json.Number `json:"StopLoss"`
	TakeProfit      *json.Number `json:"TakeProfit"`
	Expiration      *string      `json:"Expiration"`
	Commission      *json.Number `json:"Commission"`
	CommissionAgent *string      `json:"CommissionAgent"`
	Swap            *json.Number `json:"Swap"`
	Profit          *json.Number `json:"Profit"`
	Tax             *json.Number `json:"Tax"`
	Magic           *int64       `json:"Magic"`
	Comment         *string      `json:"Comment"`
	TimeStamp       *string      `json:"TimeStamp"`
	IsClosed        bool         `json:"IsClosed"`
}

func toJSONRecord(rec models.TradeRecord) jsonRecord {
	return jsonRecord{
		ID:              rec.ID,
		TradeAccountID:  rec.TradeAccountID,
		Ticket:          rec.Ticket,
		SymbolName:      rec.SymbolName,
		Digits:          rec.Digits,
		Type:            rec.Type,
		Quantity:        jsonDec(rec.Quantity),
		State:           rec.State,
		OpenTime:        jsonTime(rec.OpenTime),
		OpenPrice:       jsonDec(rec.OpenPrice),
		OpenRate:        jsonDec(rec.OpenRate),
		CloseTime:       jsonTime(rec.CloseTime),
		ClosePrice:      jsonDec(rec.ClosePrice),
		CloseRate:       jsonDec(rec.CloseRate),
		StopLoss:        jsonDec(rec.StopLoss),
		TakeProfit:      jsonDec(rec.TakeProfit),
		Expiration:      jsonTime(rec.Expiration),
		Commission:      jsonDec(rec.Commission),
		CommissionAgent: rec.CommissionAgent,
		Swap:            jsonDec(rec.Swap),
		Profit:          jsonDec(rec.Profit),
		Tax:             jsonDec(rec.Tax),
		Magic:           rec.Magic,
		Comment:         rec.Comment,
		TimeStamp:       jsonTime(rec.TimeStamp),
		IsClosed:        rec.IsClosed(),
	}
}

func jsonDec(v decimal.NullDecimal) *json.Number {
	if !v.Valid {
		return nil
	}
	n := json.Number(v.Decimal.String())
	return &n
}

func jsonTime(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := hrtime.Format(*v)
	return &s
}

// JSONLEncoder writes one JSON object per line. It has no header.
type JSONLEncoder struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

// NewJSONLEncoder returns a JSONLEncoder buffering into w. HTML characters
// are not escaped.
func NewJSONLEncoder(w io.Writer) *JSONLEncoder {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLEncoder{bw: bw, enc: enc}
}

// WriteHeader is a no-op.
func (e *JSONLEncoder) WriteHeader() error { return nil }

// Encode writes rec as a single line. Null fields are JSON null.
func (e *JSONLEncoder) Encode(rec models.TradeRecord) error {
	return e.enc.Encode(toJSONRecord(rec))
}

// Flush pushes buffered lines to the writer.
func (e *JSONLEncoder) Flush() error {
	return e.bw.Flush()
}
