package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the server.
type ErrorCode string

// Session error codes
const (
	ErrHandlerPanic   ErrorCode = "HANDLER_PANIC"
	ErrHandlerError   ErrorCode = "HANDLER_ERROR"
	ErrNilResponse    ErrorCode = "NIL_RESPONSE"
	ErrDecodeFailed   ErrorCode = "DECODE_FAILED"
	ErrBodyTooLarge   ErrorCode = "BODY_TOO_LARGE"
	ErrWriteFailed    ErrorCode = "WRITE_FAILED"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrRouteNotFound  ErrorCode = "ROUTE_NOT_FOUND"
	ErrMethodMismatch ErrorCode = "METHOD_NOT_ALLOWED"
)

// Transport error codes
const (
	ErrClassifyFailed ErrorCode = "CLASSIFY_FAILED"
	ErrTLSHandshake   ErrorCode = "TLS_HANDSHAKE"
	ErrTLSUnavailable ErrorCode = "TLS_UNAVAILABLE"
	ErrAcceptFailed   ErrorCode = "ACCEPT_FAILED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithStage records the session stage the error was raised in.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// StatusOf returns the HTTP status an error maps to, defaulting to 500.
func StatusOf(err error) int {
	if e, ok := AsError(err); ok && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// NewPanicError wraps a recovered panic value.
func NewPanicError(recovered any) *Error {
	var cause error
	switch v := recovered.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("%v", v)
	}
	return &Error{
		Code:       ErrHandlerPanic,
		Message:    "handler panicked",
		HTTPStatus: http.StatusInternalServerError,
		Stage:      StageHandler,
		Cause:      cause,
	}
}

// NewDecodeError wraps a request decoding failure.
func NewDecodeError(cause error) *Error {
	return &Error{
		Code:       ErrDecodeFailed,
		Message:    "failed to decode request",
		HTTPStatus: http.StatusBadRequest,
		Stage:      StageDecode,
		Cause:      cause,
	}
}
