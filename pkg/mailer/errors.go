package mailer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates a required message field is missing.
	ErrValidation = errors.New("missing required fields")

	// ErrUnauthorized indicates the caller's credential does not match the shared secret.
	ErrUnauthorized = errors.New("unauthorized - invalid API secret")

	// ErrNotConfigured indicates no usable email provider is configured.
	ErrNotConfigured = errors.New("no email provider configured")

	// ErrDelivery indicates every attempted provider failed.
	ErrDelivery = errors.New("failed to send email")

	// ErrTemplateNotFound indicates the template file was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrLayoutNotFound indicates the layout file was not found.
	ErrLayoutNotFound = errors.New("layout not found")

	// ErrRenderFailed indicates template rendering failed.
	ErrRenderFailed = errors.New("failed to render template")

	// ErrInvalidFrontmatter indicates invalid YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")
)

// ValidationError lists the required fields of a request.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Required []string
}

// NewValidationError creates a ValidationError for the given required fields.
func NewValidationError(required ...string) *ValidationError {
	return &ValidationError{Required: required}
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Required, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Attempt records a single failed provider attempt.
type Attempt struct {
	Err      error
	Provider string
}

// DeliveryError is returned when no provider accepted the message.
// Attempts are kept in priority order.
type DeliveryError struct {
	Attempts []Attempt
}

func (e *DeliveryError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("%s: %s", ErrDelivery.Error(), strings.Join(parts, "; "))
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// Unwrap exposes every attempt error to errors.Is and errors.As.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Last returns the error of the final attempt, or nil when there were none.
func (e *DeliveryError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Coder is implemented by provider errors that carry a diagnostic sub-code.
type Coder interface {
	ErrorCode() string
}

// ErrorCode extracts the first diagnostic sub-code found in err's chain.
func ErrorCode(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}
