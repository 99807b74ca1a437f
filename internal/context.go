package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodySize bounds request bodies decoded by DecodeJSON.
const DefaultMaxBodySize = 1 << 20

// Context is what a HandlerFunc receives. It is also a context.Context
// bound to the request, so it can be handed to blocking calls directly.
type Context interface {
	context.Context

	Request() *http.Request
	Response() http.ResponseWriter
	ResponseWriter() *ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// Param reads a chi URL parameter.
	Param(name string) string
	Query(name string) string
	Header(name string) string
	SetHeader(name, value string)

	JSON(code int, v any) error
	String(code int, s string) error
	NoContent(code int) error

	// DecodeJSON reads the body into v, up to DefaultMaxBodySize bytes.
	// An empty body is not an error and leaves v untouched.
	// Malformed JSON yields a 400 HTTPError, an oversized body a 413.
	DecodeJSON(v any) error

	// Written reports whether the response header went out.
	Written() bool

	Logger() *slog.Logger
	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a request-scoped value. Handlers further down the chain
	// see it through Get and through the request's context.
	Set(key, value any)
	Get(key any) any
}

type requestContext struct {
	req *http.Request
	rw  *ResponseWriter
	log *slog.Logger
}

func newContext(w http.ResponseWriter, r *http.Request, log *slog.Logger) *requestContext {
	return &requestContext{req: r, rw: NewResponseWriter(w), log: log}
}

// context.Context, delegated to the current request.

func (c *requestContext) Deadline() (time.Time, bool) { return c.req.Context().Deadline() }
func (c *requestContext) Done() <-chan struct{}       { return c.req.Context().Done() }
func (c *requestContext) Err() error                  { return c.req.Context().Err() }
func (c *requestContext) Value(key any) any           { return c.req.Context().Value(key) }

func (c *requestContext) Context() context.Context        { return c.req.Context() }
func (c *requestContext) Request() *http.Request          { return c.req }
func (c *requestContext) Response() http.ResponseWriter   { return c.rw }
func (c *requestContext) ResponseWriter() *ResponseWriter { return c.rw }
func (c *requestContext) Written() bool                   { return c.rw.Written() }
func (c *requestContext) Logger() *slog.Logger            { return c.log }

func (c *requestContext) Param(name string) string  { return chi.URLParam(c.req, name) }
func (c *requestContext) Query(name string) string  { return c.req.URL.Query().Get(name) }
func (c *requestContext) Header(name string) string { return c.req.Header.Get(name) }

func (c *requestContext) SetHeader(name, value string) {
	c.rw.Header().Set(name, value)
}

func (c *requestContext) JSON(code int, v any) error {
	return c.write(code, "application/json; charset=utf-8", func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	})
}

func (c *requestContext) String(code int, s string) error {
	return c.write(code, "text/plain; charset=utf-8", func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func (c *requestContext) NoContent(code int) error {
	c.rw.WriteHeader(code)
	return nil
}

func (c *requestContext) write(code int, contentType string, body func(io.Writer) error) error {
	c.rw.Header().Set("Content-Type", contentType)
	c.rw.WriteHeader(code)
	return body(c.rw)
}

func (c *requestContext) DecodeJSON(v any) error {
	if c.req.Body == nil || c.req.Body == http.NoBody {
		return nil
	}

	err := json.NewDecoder(http.MaxBytesReader(c.rw, c.req.Body, DefaultMaxBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
		return ErrRequestTooLarge("Request body too large", WithError(err))
	}
	return ErrBadRequest("Invalid JSON body", WithError(fmt.Errorf("decode json: %w", err)))
}

func (c *requestContext) LogDebug(msg string, attrs ...any) { c.logAt(slog.LevelDebug, msg, attrs) }
func (c *requestContext) LogInfo(msg string, attrs ...any)  { c.logAt(slog.LevelInfo, msg, attrs) }
func (c *requestContext) LogWarn(msg string, attrs ...any)  { c.logAt(slog.LevelWarn, msg, attrs) }
func (c *requestContext) LogError(msg string, attrs ...any) { c.logAt(slog.LevelError, msg, attrs) }

func (c *requestContext) logAt(level slog.Level, msg string, attrs []any) {
	c.log.Log(c.req.Context(), level, msg, attrs...)
}

func (c *requestContext) Set(key, value any) {
	c.req = c.req.WithContext(context.WithValue(c.req.Context(), key, value))
}

func (c *requestContext) Get(key any) any {
	return c.req.Context().Value(key)
}
