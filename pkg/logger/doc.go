// Package logger builds the service's slog logger.
//
// Output is JSON on stdout (or text when LOG_FORMAT=text) at the level named
// by LOG_LEVEL. Context extractors add request-scoped attributes such as the
// request ID to every record:
//
//	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())
//	log.InfoContext(r.Context(), "email sent", slog.String("provider", "relay"))
//	// {"level":"INFO","msg":"email sent","provider":"relay","request_id":"..."}
//
// When SENTRY_DSN is set, warnings are also stored as Sentry logs and
// errors create Sentry issues. Without a DSN only stdout is used. Call
// FlushSentry during shutdown so buffered events are delivered.
package logger
