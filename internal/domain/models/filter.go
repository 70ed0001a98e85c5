package models

// Filter defaults and bounds.
const (
	DefaultLimit    = 100
	MaxLimit        = 10000
	DefaultOrderBy  = "OpenTime"
	DefaultOrderDir = "ASC"
)

// TradeFilter is the structured input of filter mode. Nil or empty fields
// impose no predicate; zero-valued pagination and ordering take the defaults.
//
// Time bounds are ISO-8601 UTC strings with a Z suffix
// (e.g. "2023-02-09T00:00:00Z"). From bounds are inclusive, To bounds exclusive.
type TradeFilter struct {
	AccountID   *int64
	Ticket      *int64
	Symbol      *string
	OpenedFrom  *string
	OpenedTo    *string
	ClosedFrom  *string
	ClosedTo    *string
	CommentLike *string

	Limit    *int   `validate:"omitempty,min=1,max=10000"`
	Offset   *int   `validate:"omitempty,min=0"`
	OrderBy  string `validate:"omitempty,oneof=ID OpenTime CloseTime TimeStamp Ticket"`
	OrderDir string `validate:"omitempty,oneof=ASC DESC"`
}
