package querybuilder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/hrtime"
	"github.com/guttosm/tradeexport/internal/schema"
)

// DefaultTable is the trade history table name.
const DefaultTable = "TradeHistories"

// Query is a statement plus its positional arguments. Placeholders are "?";
// executors rebind them to the driver's bindvar style.
type Query struct {
	SQL  string
	Args []any
}

// orderColumns is the ORDER BY allow-list, keyed by lower-cased name.
var orderColumns = map[string]string{
	"id":        schema.ColID,
	"opentime":  schema.ColOpenTime,
	"closetime": schema.ColCloseTime,
	"timestamp": schema.ColTimeStamp,
	"ticket":    schema.ColTicket,
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Builder turns a TradeFilter into a parameterized SELECT over one table.
type Builder struct {
	table    string
	validate *validator.Validate
}

// New returns a Builder for table, which must be a plain (optionally
// schema-qualified) identifier since it is placed into the SQL text.
func New(table string) (*Builder, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Builder{table: table, validate: validator.New()}, nil
}

var defaultBuilder, _ = New(DefaultTable)

// Build builds the query for f against DefaultTable.
func Build(f models.TradeFilter) (Query, error) {
	return defaultBuilder.Build(f)
}

// Build validates f and produces the SELECT of all required columns.
// Every filter value travels as an argument; only the allow-listed ORDER BY
// column, the ASC/DESC token and the bound-checked LIMIT/OFFSET integers are
// written into the statement text. Any invalid field yields a
// *errs.InvalidFilterError and no query.
func (b *Builder) Build(f models.TradeFilter) (Query, error) {
	if canonical, ok := orderColumns[strings.ToLower(strings.TrimSpace(f.OrderBy))]; ok {
		f.OrderBy = canonical
	}
	f.OrderDir = strings.ToUpper(strings.TrimSpace(f.OrderDir))

	if err := b.validate.Struct(f); err != nil {
		return Query{}, toFilterError(err)
	}

	var (
		preds []string
		args  []any
	)
	add := func(pred string, arg any) {
		preds = append(preds, pred)
		args = append(args, arg)
	}

	if f.AccountID != nil {
		add(schema.ColTradeAccountID+" = ?", *f.AccountID)
	}
	if f.Ticket != nil {
		add(schema.ColTicket+" = ?", *f.Ticket)
	}
	if f.Symbol != nil && *f.Symbol != "" {
		add(schema.ColSymbolName+" = ?", *f.Symbol)
	}

	bounds := []struct {
		field  string
		value  *string
		column string
		op     string
	}{
		{"opened_from", f.OpenedFrom, schema.ColOpenTime, ">="},
		{"opened_to", f.OpenedTo, schema.ColOpenTime, "<"},
		{"closed_from", f.ClosedFrom, schema.ColCloseTime, ">="},
		{"closed_to", f.ClosedTo, schema.ColCloseTime, "<"},
	}
	for _, bd := range bounds {
		if bd.value == nil || *bd.value == "" {
			continue
		}
		packed, err := hrtime.EncodeFromISO(*bd.value)
		if err != nil {
			return Query{}, &errs.InvalidFilterError{Field: bd.field, Reason: err.Error()}
		}
		add(bd.column+" "+bd.op+" ?", packed)
	}

	if f.CommentLike != nil && *f.CommentLike != "" {
		add(schema.ColComment+" LIKE ?", "%"+*f.CommentLike+"%")
	}

	limit, offset := models.DefaultLimit, 0
	if f.Limit != nil {
		limit = *f.Limit
	}
	if f.Offset != nil {
		offset = *f.Offset
	}
	orderBy, orderDir := f.OrderBy, f.OrderDir
	if orderBy == "" {
		orderBy = models.DefaultOrderBy
	}
	if orderDir == "" {
		orderDir = models.DefaultOrderDir
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(schema.RequiredColumns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	if len(preds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(preds, " AND "))
	}
	sb.WriteString(" ORDER BY " + orderBy + " " + orderDir)
	sb.WriteString(" LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset))

	return Query{SQL: sb.String(), Args: args}, nil
}

// toFilterError translates the first validator failure.
func toFilterError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &errs.InvalidFilterError{Field: "filter", Reason: err.Error()}
	}
	fe := verrs[0]
	field := fieldName(fe.Field())

	var reason string
	switch {
	case fe.Field() == "Limit":
		reason = fmt.Sprintf("must be between 1 and %d", models.MaxLimit)
	case fe.Tag() == "min":
		reason = "must be >= " + fe.Param()
	case fe.Tag() == "oneof":
		reason = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		reason = "failed " + fe.Tag() + " check"
	}
	return &errs.InvalidFilterError{Field: field, Reason: reason}
}

func fieldName(goName string) string {
	switch goName {
	case "OrderBy":
		return "order_by"
	case "OrderDir":
		return "order_dir"
	default:
		return strings.ToLower(goName)
	}
}
