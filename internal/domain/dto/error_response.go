package dto

import "time"

// ErrorResponse is the JSON body returned for every failed API request.
//
// Fields:
//   - Message: short, client-facing description.
//   - ErrorDetails: the underlying error text, if any.
//   - Code: machine-readable error class (e.g. "invalid_filter").
//   - Timestamp: when the error was produced (UTC).
type ErrorResponse struct {
	Message      string    `json:"message" example:"invalid filter"`
	ErrorDetails string    `json:"error_details,omitempty" example:"invalid filter limit: must be between 1 and 10000"`
	Code         string    `json:"code,omitempty" example:"invalid_filter"`
	Timestamp    time.Time `json:"timestamp"`
}

// Error implements the error interface so the response can travel through c.Error.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}

// NewErrorResponse builds an ErrorResponse, copying err's text when non-nil.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{Message: message, Timestamp: time.Now().UTC()}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}

// WithCode returns a copy of e carrying the given error class.
func (e ErrorResponse) WithCode(code string) ErrorResponse {
	e.Code = code
	return e
}
