package dto

// ExportQuery holds the query-string parameters of GET /api/v1/trades/export.
// Optional parameters are pointers so "absent" and "zero" stay distinct.
type ExportQuery struct {
	Format      string  `form:"format" binding:"omitempty,oneof=jsonl csv" example:"jsonl"`
	AccountID   *int64  `form:"account_id" example:"111"`
	Ticket      *int64  `form:"ticket" example:"3599795"`
	Symbol      *string `form:"symbol" example:"EURUSD"`
	OpenedFrom  *string `form:"opened_from" example:"2023-02-09T00:00:00Z"`
	OpenedTo    *string `form:"opened_to" example:"2023-02-10T00:00:00Z"`
	ClosedFrom  *string `form:"closed_from"`
	ClosedTo    *string `form:"closed_to"`
	CommentLike *string `form:"comment_like" example:"hedge"`
	Limit       *int    `form:"limit" example:"100"`
	Offset      *int    `form:"offset" example:"0"`
	OrderBy     string  `form:"order_by" example:"OpenTime"`
	OrderDir    string  `form:"order_dir" example:"ASC"`
	DropZero    bool    `form:"drop_zero_magic"`
	DropCancel  bool    `form:"drop_cancelled"`
}
