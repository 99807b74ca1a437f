package middlewares

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/pkg/logger"
)

// Inbound IDs longer than this are replaced, so callers cannot flood logs.
const maxRequestIDLength = 128

type requestIDKey struct{}

// DefaultRequestIDHeaders are tried in order for an upstream ID.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestIDConfig tunes RequestID.
type RequestIDConfig struct {
	Generator      func() string
	ResponseHeader string
	Headers        []string
}

// RequestIDOption tunes RequestIDConfig.
type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders replaces DefaultRequestIDHeaders.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) { cfg.Headers = headers }
}

// WithRequestIDGenerator replaces uuid.NewString.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) { cfg.Generator = gen }
}

// WithRequestIDResponseHeader renames the echoed header (X-Request-ID).
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *RequestIDConfig) { cfg.ResponseHeader = header }
}

// RequestID tags each request with an ID taken from the first usable
// inbound header or freshly generated. The ID is echoed in the response
// and stored for GetRequestID and RequestIDExtractor.
func RequestID(opts ...RequestIDOption) internal.Middleware {
	cfg := RequestIDConfig{
		Headers:        DefaultRequestIDHeaders,
		Generator:      uuid.NewString,
		ResponseHeader: "X-Request-ID",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			id := inboundID(c, cfg.Headers)
			if id == "" {
				id = cfg.Generator()
			}
			c.Set(requestIDKey{}, id)
			c.SetHeader(cfg.ResponseHeader, id)
			return next(c)
		}
	}
}

func inboundID(c internal.Context, headers []string) string {
	for _, h := range headers {
		v := strings.TrimSpace(c.Header(h))
		if v != "" && len(v) <= maxRequestIDLength {
			return v
		}
	}
	return ""
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(c internal.Context) string {
	id, _ := c.Get(requestIDKey{}).(string)
	return id
}

// RequestIDExtractor adds request_id to records logged with a request context.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, _ := ctx.Value(requestIDKey{}).(string)
		if id == "" {
			return slog.Attr{}, false
		}
		return slog.String("request_id", id), true
	}
}
