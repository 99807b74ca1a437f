package internal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spana/mailgate/pkg/health"
	"github.com/spana/mailgate/pkg/logger"
)

// Probe paths served when WithHealthChecks is used.
const (
	LivenessPath  = "/health/live"
	ReadinessPath = "/health/ready"
)

// App is an http.Handler built from handlers, middleware and error
// renderers. Routes are fixed once New returns.
type App struct {
	mux              *chi.Mux
	logger           *slog.Logger
	onError          ErrorHandler
	notFound         HandlerFunc
	methodNotAllowed HandlerFunc
	readiness        health.Checks
	middlewares      []Middleware
	handlers         []Handler
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to every Context.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMiddleware adds middleware that wraps every request, including
// 404 and 405 responses and mounted handlers.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) { a.middlewares = append(a.middlewares, mw...) }
}

// WithHandlers adds route groups.
func WithHandlers(h ...Handler) Option {
	return func(a *App) { a.handlers = append(a.handlers, h...) }
}

// WithErrorHandler replaces the plain-text error renderer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) { a.onError = h }
}

func WithNotFoundHandler(h HandlerFunc) Option {
	return func(a *App) { a.notFound = h }
}

func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return func(a *App) { a.methodNotAllowed = h }
}

// HealthOption configures the orchestrator probes.
type HealthOption func(health.Checks)

// WithReadinessCheck makes readiness depend on fn:
//
//	internal.WithReadinessCheck("redis", redis.Healthcheck(client))
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c health.Checks) {
		if fn != nil {
			c[name] = fn
		}
	}
}

// WithHealthChecks serves LivenessPath and ReadinessPath.
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		a.readiness = health.Checks{}
		for _, opt := range opts {
			opt(a.readiness)
		}
	}
}

// New builds the application:
//
//	app := internal.New(
//	    internal.WithLogger(log),
//	    internal.WithMiddleware(middlewares.RequestID()),
//	    internal.WithHandlers(handlers.NewEmail(dispatcher)),
//	)
func New(opts ...Option) *App {
	a := &App{mux: chi.NewRouter(), logger: logger.NewNope()}
	for _, opt := range opts {
		opt(a)
	}

	// chi requires middleware before any route, custom 404/405 included.
	for _, mw := range a.middlewares {
		a.mux.Use(a.adapt(mw))
	}
	if a.notFound != nil {
		a.mux.NotFound(a.serve(a.notFound))
	}
	if a.methodNotAllowed != nil {
		a.mux.MethodNotAllowed(a.serve(a.methodNotAllowed))
	}
	if a.readiness != nil {
		a.mux.Get(LivenessPath, health.LivenessHandler())
		a.mux.Get(ReadinessPath, health.ReadinessHandler(a.readiness, health.WithLogger(a.logger)))
	}

	r := &router{mux: a.mux, app: a}
	for _, h := range a.handlers {
		h.Routes(r)
	}
	return a
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// serve adapts h to net/http and routes its error to the error handler.
func (a *App) serve(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r, a.logger)
		if err := h(c); err != nil {
			a.fail(c, err)
		}
	}
}

// adapt turns a Middleware into chi's form. The request passed downstream
// is the one the middleware last stored through Context.Set.
func (a *App) adapt(mw Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := mw(func(c Context) error {
			next.ServeHTTP(c.Response(), c.Request())
			return nil
		})
		return a.serve(h)
	}
}

func (a *App) fail(c Context, err error) {
	if c.Written() {
		return
	}
	if a.onError != nil {
		if rerr := a.onError(c, err); rerr != nil {
			c.LogError("error handler failed", slog.Any("error", rerr))
		}
		return
	}

	code, msg := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	if httpErr := AsHTTPError(err); httpErr != nil {
		code, msg = httpErr.Code, httpErr.Message
	}
	http.Error(c.Response(), msg, code)
}
