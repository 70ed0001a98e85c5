package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/tradeexport/internal/domain/dto"
	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/domain/models"
	"github.com/guttosm/tradeexport/internal/export"
	"github.com/guttosm/tradeexport/internal/logger"
	"github.com/guttosm/tradeexport/internal/mapper"
	"github.com/guttosm/tradeexport/internal/middleware"
	"github.com/guttosm/tradeexport/internal/postfilter"
	"github.com/guttosm/tradeexport/internal/service"
)

// Output formats accepted by the export endpoint.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// HandlerOptions carries the pipeline defaults from configuration.
type HandlerOptions struct {
	Policy     mapper.RowErrorPolicy
	FlushEvery int
}

// Handler provides HTTP handlers for trade export endpoints.
//
// Responsibilities:
//   - Bind and validate query parameters into a models.TradeFilter
//   - Open the export through the service before writing anything
//   - Stream the records as JSONL or CSV
type Handler struct {
	svc  service.ExportService
	opts HandlerOptions
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.ExportService, opts HandlerOptions) *Handler {
	return &Handler{svc: svc, opts: opts}
}

// ExportTrades handles GET /api/v1/trades/export requests.
//
// Only filter mode is available over HTTP; raw SQL is a CLI-only feature.
// Errors detected before the first record are answered with a JSON
// dto.ErrorResponse (400 invalid filter, 422 bad row, 500/503 server side).
// Once streaming has started, a failure truncates the body and is logged.
//
// ExportTrades godoc
// @Summary      Export trade history
// @Description  Streams TradeHistories rows matching the filter as JSON Lines or CSV
// @Tags         trades
// @Produce      application/x-ndjson
// @Produce      text/csv
// @Param        format           query     string  false  "Output format"                    Enums(jsonl, csv) default(jsonl)
// @Param        account_id       query     int     false  "Trade account id"                 example(111)
// @Param        ticket           query     int     false  "Ticket"                           example(3599795)
// @Param        symbol           query     string  false  "Symbol name"                      example(EURUSD)
// @Param        opened_from      query     string  false  "OpenTime >= (ISO-8601 UTC, Z)"    example(2023-02-09T00:00:00Z)
// @Param        opened_to        query     string  false  "OpenTime < (ISO-8601 UTC, Z)"     example(2023-02-10T00:00:00Z)
// @Param        closed_from      query     string  false  "CloseTime >= (ISO-8601 UTC, Z)"
// @Param        closed_to        query     string  false  "CloseTime < (ISO-8601 UTC, Z)"
// @Param        comment_like     query     string  false  "Comment contains"                 example(hedge)
// @Param        limit            query     int     false  "Max rows (1-10000)"               default(100)
// @Param        offset           query     int     false  "Rows to skip"                     default(0)
// @Param        order_by         query     string  false  "Sort column"                      Enums(ID, OpenTime, CloseTime, TimeStamp, Ticket) default(OpenTime)
// @Param        order_dir        query     string  false  "Sort direction"                   Enums(ASC, DESC) default(ASC)
// @Param        drop_zero_magic  query     bool    false  "Exclude rows with Magic = 0"
// @Param        drop_cancelled   query     bool    false  "Exclude cancelled rows"
// @Success      200              {string}  string           "One record per line"
// @Failure      400              {object}  dto.ErrorResponse  "Invalid filter"
// @Failure      422              {object}  dto.ErrorResponse  "Row mapping error"
// @Failure      500              {object}  dto.ErrorResponse  "Internal Error"
// @Failure      503              {object}  dto.ErrorResponse  "Database unavailable"
// @Router       /api/v1/trades/export [get]
func (h *Handler) ExportTrades(c *gin.Context) {
	// ─── Bind query ───────────────────────────────
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(&errs.InvalidFilterError{Field: "query", Reason: err.Error()})
		return
	}
	format := strings.ToLower(q.Format)
	if format == "" {
		format = FormatJSONL
	}

	f := toFilter(q)
	req := service.ExportRequest{
		Filter:     &f,
		Policy:     h.opts.Policy,
		Exclude:    postfilter.Rules{DropZeroMagic: q.DropZero, DropCancelled: q.DropCancel},
		FlushEvery: h.opts.FlushEvery,
	}

	// ─── Open (query + schema check) ──────────────
	ctx := c.Request.Context()
	run, err := h.svc.Open(ctx, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer func() { _ = run.Close() }()
	if err := run.Prime(); err != nil {
		_ = c.Error(err)
		return
	}

	// ─── Stream ───────────────────────────────────
	var enc export.Encoder
	switch format {
	case FormatCSV:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="trades.csv"`)
		enc = export.NewCSVEncoder(c.Writer)
	default:
		c.Header("Content-Type", "application/x-ndjson")
		enc = export.NewJSONLEncoder(c.Writer)
	}
	c.Status(http.StatusOK)

	sum, err := run.Stream(ctx, flushingEncoder{Encoder: enc, w: c.Writer})
	if err != nil {
		_ = c.Error(err)
		return
	}
	rid, _ := c.Get(middleware.RequestIDKey)
	logger.L().Debug().Interface("request_id", rid).Int("written", sum.Written).Msg("export streamed")
}

// toFilter copies the bound query into a filter; validation happens in the
// query builder so CLI and HTTP share the same rules and messages.
func toFilter(q dto.ExportQuery) models.TradeFilter {
	return models.TradeFilter{
		AccountID:   q.AccountID,
		Ticket:      q.Ticket,
		Symbol:      q.Symbol,
		OpenedFrom:  q.OpenedFrom,
		OpenedTo:    q.OpenedTo,
		ClosedFrom:  q.ClosedFrom,
		ClosedTo:    q.ClosedTo,
		CommentLike: q.CommentLike,
		Limit:       q.Limit,
		Offset:      q.Offset,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
	}
}

// flushingEncoder pushes each flushed window to the client.
type flushingEncoder struct {
	export.Encoder
	w http.Flusher
}

func (e flushingEncoder) Flush() error {
	if err := e.Encoder.Flush(); err != nil {
		return err
	}
	e.w.Flush()
	return nil
}
