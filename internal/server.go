package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server limits. The write timeout outlasts a request that tries every
// provider with its full connect, greeting and socket budget.
const (
	readTimeout       = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 150 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20

	defaultShutdownTimeout = 30 * time.Second
)

// RunOption configures Run.
type RunOption func(*server)

type hook = func(context.Context) error

type server struct {
	base            context.Context
	listener        net.Listener
	shutdownTimeout time.Duration
	onStart         []hook
	onStop          []hook
}

// ShutdownTimeout bounds draining plus shutdown hooks. Defaults to 30s.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(s *server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// StartupHook runs fn before the listener opens. An error aborts Run.
func StartupHook(fn func(context.Context) error) RunOption {
	return func(s *server) {
		if fn != nil {
			s.onStart = append(s.onStart, fn)
		}
	}
}

// ShutdownHook runs fn after in-flight requests drained, in the order
// registered:
//
//	internal.ShutdownHook(redis.Shutdown(client))
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(s *server) {
		if fn != nil {
			s.onStop = append(s.onStop, fn)
		}
	}
}

// WithContext stops the server when ctx is cancelled.
func WithContext(ctx context.Context) RunOption {
	return func(s *server) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

// WithListener serves on ln instead of listening on the address.
func WithListener(ln net.Listener) RunOption {
	return func(s *server) {
		if ln != nil {
			s.listener = ln
		}
	}
}

// Run serves the app on addr (":3000" when empty) until SIGINT, SIGTERM,
// cancellation of the WithContext context or a listener failure. It then
// drains in-flight requests and runs the shutdown hooks, joining their
// errors.
func (a *App) Run(addr string, opts ...RunOption) error {
	s := &server{base: context.Background(), shutdownTimeout: defaultShutdownTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if addr == "" {
		addr = ":3000"
	}

	ctx, stop := signal.NotifyContext(s.base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, fn := range s.onStart {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	ln := s.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return errors.Join(err, s.shutdown(nil, a.logger))
		}
	}

	srv := &http.Server{
		Handler:           a,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			a.logger.Error("server failed", slog.Any("error", err))
		}
		return errors.Join(err, s.shutdown(srv, a.logger))
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	return s.shutdown(srv, a.logger)
}

// shutdown drains srv, when there is one, and runs every shutdown hook.
func (s *server) shutdown(srv *http.Server, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	for _, fn := range s.onStop {
		if err := fn(ctx); err != nil {
			log.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info("shutdown completed")
	return nil
}
