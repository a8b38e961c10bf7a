package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the API reports to clients: a stable code, a message
// and the HTTP status. Err is kept for logs and never serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Details []ValidationError      `json:"details,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithParam attaches a value the client can act on, such as the
// participant whose data is missing.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(code, message string) *AppError {
	if code == "" {
		code = "ERR_NOT_FOUND"
	}
	return NewAppError(code, message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// ValidationFailedError carries per-field details for transports that have
// no status line of their own, like websocket messages.
func ValidationFailedError(details []ValidationError) *AppError {
	e := NewAppError("ERR_VALIDATION", "invalid request", http.StatusBadRequest)
	e.Details = details
	return e
}

func ConflictError(code, message string) *AppError {
	return NewAppError(code, message, http.StatusConflict)
}

func UnavailableError(code, message string) *AppError {
	return NewAppError(code, message, http.StatusServiceUnavailable)
}

func TooManyRequestsError() *AppError {
	return NewAppError("ERR_RATE_LIMITED", "too many requests", http.StatusTooManyRequests)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", message, http.StatusInternalServerError)
}
