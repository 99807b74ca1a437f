package internal

import (
	"net/http"
	"sync/atomic"
)

// ResponseWriter records what a handler sent: the status code, the number
// of body bytes and whether the header went out.
type ResponseWriter struct {
	http.ResponseWriter
	status  atomic.Int32
	size    atomic.Int64
	started atomic.Bool
}

// NewResponseWriter wraps w. Wrapping a *ResponseWriter returns it unchanged,
// so every layer of middleware observes the same response.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	rw := &ResponseWriter{ResponseWriter: w}
	rw.status.Store(http.StatusOK)
	return rw
}

// WriteHeader sends code unless a header was already sent.
func (w *ResponseWriter) WriteHeader(code int) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.status.Store(int32(code))
	w.ResponseWriter.WriteHeader(code)
}

// Write sends an implicit 200 header on first use.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if w.started.CompareAndSwap(false, true) {
		w.ResponseWriter.WriteHeader(int(w.status.Load()))
	}
	n, err := w.ResponseWriter.Write(b)
	w.size.Add(int64(n))
	return n, err
}

// Status is the code sent, or 200 while nothing was sent.
func (w *ResponseWriter) Status() int { return int(w.status.Load()) }

// Size counts body bytes written so far.
func (w *ResponseWriter) Size() int64 { return w.size.Load() }

// Written reports whether the header went out.
func (w *ResponseWriter) Written() bool { return w.started.Load() }

func (w *ResponseWriter) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
