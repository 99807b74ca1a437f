// Package middlewares provides the HTTP middleware stack used by mailgate.
//
// # Request ID
//
// RequestID keeps an upstream X-Request-ID (or X-Correlation-ID) or
// generates a UUID, stores it on the request context and echoes it in the
// response. Pair it with RequestIDExtractor so every log line carries it:
//
//	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())
//	app := internal.New(
//	    internal.WithLogger(log),
//	    internal.WithMiddleware(middlewares.RequestID()),
//	)
//
// # Request logging
//
// RequestLogger writes one structured line per request. Place it after
// RequestID so the line includes the request ID.
//
// # Recover
//
// Recover turns panics into *PanicError values handed to the app's
// ErrorHandler, which renders them as 500 responses.
//
// # CORS
//
// CORS answers preflight requests and allows the X-Api-Secret header:
//
//	middlewares.CORS(middlewares.WithAllowOrigins(cfg.CORSAllowOrigins...))
package middlewares
