package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/middlewares"
	"github.com/spana/mailgate/pkg/mailer"
)

const msgUnauthorized = "Unauthorized - Invalid API secret"

type errorResponse struct {
	Message  string   `json:"message"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
	Required []string `json:"required,omitempty"`
	Success  bool     `json:"success"`
}

// ErrorHandler renders handler errors as JSON bodies with success=false.
// Client errors carry only a message (plus the required field list for
// validation failures). Server errors also carry the cause and the provider
// sub-code when one is known.
func ErrorHandler(c internal.Context, err error) error {
	httpErr := internal.AsHTTPError(err)
	if httpErr == nil {
		if pe, ok := middlewares.AsPanicError(err); ok {
			c.LogError("handler panicked", slog.Any("panic", pe.Value))
		} else {
			c.LogError("unhandled error", slog.Any("error", err))
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	body := errorResponse{Message: httpErr.Message}
	if httpErr.Code < http.StatusInternalServerError {
		var verr *mailer.ValidationError
		if errors.As(err, &verr) {
			body.Required = verr.Required
		}
		return c.JSON(httpErr.Code, body)
	}

	if httpErr.Err != nil {
		body.Error = httpErr.Err.Error()
	}
	body.Code = httpErr.ErrorCode
	return c.JSON(httpErr.Code, body)
}

// NotFound answers unknown paths.
func NotFound(c internal.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Not found"})
}

// MethodNotAllowed answers known paths hit with the wrong method.
func MethodNotAllowed(c internal.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
}
