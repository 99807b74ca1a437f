package internal

import (
	"errors"
	"net/http"
)

// HTTPError is a handler error that knows how it should be answered.
// Message is shown to the client; Err is the cause and is only logged.
type HTTPError struct {
	Err       error
	Message   string
	ErrorCode string // machine-readable detail, e.g. a provider sub-code
	RequestID string
	Code      int
}

func (e *HTTPError) Error() string   { return e.Message }
func (e *HTTPError) Unwrap() error   { return e.Err }
func (e *HTTPError) StatusCode() int { return e.Code }

// StatusText is the standard reason phrase for Code.
func (e *HTTPError) StatusText() string { return http.StatusText(e.Code) }

// HTTPErrorOption sets optional HTTPError fields.
type HTTPErrorOption func(*HTTPError)

func WithError(err error) HTTPErrorOption       { return func(e *HTTPError) { e.Err = err } }
func WithErrorCode(code string) HTTPErrorOption { return func(e *HTTPError) { e.ErrorCode = code } }
func WithRequestID(id string) HTTPErrorOption   { return func(e *HTTPError) { e.RequestID = id } }

// NewHTTPError builds an HTTPError answered with code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func statusError(code int) func(string, ...HTTPErrorOption) *HTTPError {
	return func(message string, opts ...HTTPErrorOption) *HTTPError {
		return NewHTTPError(code, message, opts...)
	}
}

// Shorthands for the statuses mailgate answers with.
var (
	ErrBadRequest         = statusError(http.StatusBadRequest)
	ErrUnauthorized       = statusError(http.StatusUnauthorized)
	ErrNotFound           = statusError(http.StatusNotFound)
	ErrMethodNotAllowed   = statusError(http.StatusMethodNotAllowed)
	ErrRequestTooLarge    = statusError(http.StatusRequestEntityTooLarge)
	ErrInternal           = statusError(http.StatusInternalServerError)
	ErrServiceUnavailable = statusError(http.StatusServiceUnavailable)
)

// AsHTTPError returns the first HTTPError in err's chain, or nil.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

// IsHTTPError reports whether err's chain holds an HTTPError.
func IsHTTPError(err error) bool {
	return AsHTTPError(err) != nil
}
