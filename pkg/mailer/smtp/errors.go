package smtp

import (
	"errors"
	"fmt"
	"net"
)

// Diagnostic codes carried by RelayError.
const (
	CodeConnect  = "connect"
	CodeGreeting = "greeting"
	CodeTLS      = "tls"
	CodeAuth     = "auth"
	CodeEnvelope = "envelope"
	CodeData     = "data"
	CodeTimeout  = "timeout"
)

var (
	ErrSTARTTLSUnsupported = errors.New("server does not support STARTTLS")
	ErrAuthUnsupported     = errors.New("server offers no supported AUTH mechanism")
)

// RelayError is returned for every relay failure. Code names the phase
// that failed; the dispatcher only reports it.
type RelayError struct {
	Err  error
	Code string
	Op   string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("smtp %s (%s): %v", e.Op, e.Code, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// ErrorCode implements mailer.Coder.
func (e *RelayError) ErrorCode() string { return e.Code }

// Timeout reports whether the underlying failure was a deadline.
func (e *RelayError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// relayError builds a RelayError. Deadlines hit after the greeting are
// reported as CodeTimeout; connect and greeting keep their own codes.
func relayError(code, op string, err error) *RelayError {
	e := &RelayError{Code: code, Op: op, Err: err}
	if code != CodeConnect && code != CodeGreeting && e.Timeout() {
		e.Code = CodeTimeout
	}
	return e
}
