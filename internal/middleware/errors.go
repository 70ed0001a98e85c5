package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/tradeexport/internal/domain/dto"
	"github.com/guttosm/tradeexport/internal/domain/errs"
	"github.com/guttosm/tradeexport/internal/logger"
)

// Error classes returned in dto.ErrorResponse.Code.
const (
	CodeInvalidFilter     = "invalid_filter"
	CodeStatementRejected = "statement_rejected"
	CodeMissingColumns    = "missing_columns"
	CodeMapping           = "row_mapping"
	CodeDatabase          = "database"
	CodeOutput            = "output"
	CodeInternal          = "internal"
)

// Classify maps a pipeline error to an HTTP status and an error class.
func Classify(err error) (int, string) {
	var (
		filter   *errs.InvalidFilterError
		rejected *errs.StatementRejectedError
		missing  *errs.MissingColumnsError
		mapping  *errs.MappingError
		dbErr    *errs.DatabaseError
		ioErr    *errs.IOError
	)
	switch {
	case errors.As(err, &filter):
		return http.StatusBadRequest, CodeInvalidFilter
	case errors.As(err, &rejected):
		return http.StatusBadRequest, CodeStatementRejected
	case errors.As(err, &mapping):
		return http.StatusUnprocessableEntity, CodeMapping
	case errors.As(err, &missing):
		return http.StatusInternalServerError, CodeMissingColumns
	case errors.As(err, &dbErr):
		return http.StatusServiceUnavailable, CodeDatabase
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError, CodeOutput
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// ErrorHandler renders the last error attached with c.Error as a
// dto.ErrorResponse. Once a streamed body has started nothing can be sent,
// so the error is only logged.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 {
		return
	}
	err := c.Errors.Last().Err
	rid, _ := c.Get(RequestIDKey)

	if c.Writer.Written() {
		logger.L().Error().Err(err).Str("request_id", toString(rid)).Msg("error after response started")
		return
	}

	// a handler may have prepared streaming headers before failing
	c.Writer.Header().Del("Content-Disposition")
	c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")

	var resp dto.ErrorResponse
	if errors.As(err, &resp) {
		c.JSON(statusOr(c, http.StatusInternalServerError), resp)
		return
	}
	status, code := Classify(err)
	c.JSON(status, dto.NewErrorResponse(http.StatusText(status), err).WithCode(code))
}

// AbortWithError stops the chain and writes a dto.ErrorResponse immediately.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	_, code := Classify(err)
	if err == nil {
		code = ""
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err).WithCode(code))
}

// statusOr keeps a status already chosen by the handler.
func statusOr(c *gin.Context, def int) int {
	if s := c.Writer.Status(); s >= http.StatusBadRequest {
		return s
	}
	return def
}
