package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the log level, output format and optional Sentry fan-out.
type Config struct {
	Level  string       `env:"LOG_LEVEL" envDefault:"info"`
	Format string       `env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig // SENTRY_* keys
}

// ParseLevel maps debug, info, warn and error to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a stdout logger from cfg with optional context extractors.
// Records at warn and above also go to Sentry when a DSN is configured.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, extractors...)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	base := newBaseHandler(w, cfg)
	if sentryHandler := newSentryHandler(cfg.Sentry, base); sentryHandler != nil {
		base = fanout{base, sentryHandler}
	}
	return slog.New(withExtractors(base, extractors...))
}

func newBaseHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// NewNope returns a logger that drops every record. Tests use it to keep
// output quiet.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
