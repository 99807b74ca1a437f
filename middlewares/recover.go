package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/spana/mailgate/internal"
)

// DefaultStackSize bounds the captured stack trace, in bytes.
const DefaultStackSize = 4096

// PanicError carries a recovered panic to the error handler.
type PanicError struct {
	Value any
	Stack []byte // nil when stack capture is off
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes a panic value that is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// AsPanicError returns the PanicError in err's chain.
func AsPanicError(err error) (*PanicError, bool) {
	var pe *PanicError
	ok := errors.As(err, &pe)
	return pe, ok
}

// IsPanicError reports whether err's chain holds a PanicError.
func IsPanicError(err error) bool {
	_, ok := AsPanicError(err)
	return ok
}

// RecoverOption tunes Recover.
type RecoverOption func(*recoverer)

type recoverer struct {
	stackSize int // 0 disables capture
}

// WithRecoverStackSize caps the captured stack at size bytes.
func WithRecoverStackSize(size int) RecoverOption {
	return func(r *recoverer) {
		if size > 0 {
			r.stackSize = size
		}
	}
}

// WithRecoverDisablePrintStack skips stack capture entirely.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(r *recoverer) { r.stackSize = 0 }
}

// Recover converts a handler panic into a *PanicError returned to the
// app's ErrorHandler. http.ErrAbortHandler keeps unwinding so the server
// drops the connection.
func Recover(opts ...RecoverOption) internal.Middleware {
	rc := &recoverer{stackSize: DefaultStackSize}
	for _, opt := range opts {
		opt(rc)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = rc.handle(c, v)
				}
			}()
			return next(c)
		}
	}
}

func (rc *recoverer) handle(c internal.Context, v any) error {
	if e, ok := v.(error); ok && errors.Is(e, http.ErrAbortHandler) {
		panic(v)
	}

	pe := &PanicError{Value: v}
	attrs := []any{slog.Any("panic", v)}
	if rc.stackSize > 0 {
		buf := make([]byte, rc.stackSize)
		pe.Stack = buf[:runtime.Stack(buf, false)]
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	c.LogError("panic recovered", attrs...)
	return pe
}
