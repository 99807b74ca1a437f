package health

import (
	"context"
	"log/slog"
	"time"
)

// Check and report statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

const defaultTimeout = 5 * time.Second

// CheckFunc reports a dependency's health; nil means healthy.
// redis.Healthcheck and the dispatcher liveness probes have this shape.
type CheckFunc func(ctx context.Context) error

// Checks names the checks to run.
type Checks map[string]CheckFunc

// Response is the aggregated report. Status is unhealthy as soon as one
// check fails.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check is the outcome of one CheckFunc.
type Check struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option tunes Run and ReadinessHandler.
type Option func(*config)

// WithTimeout bounds all checks together. Defaults to 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger receives a warning per failed check.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{timeout: defaultTimeout, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes checks concurrently under one shared deadline.
// A check that returns nil after the deadline is reported as ErrCheckTimeout.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	return runChecks(ctx, checks, newConfig(opts...))
}

type outcome struct {
	name  string
	check Check
}

func runChecks(ctx context.Context, checks Checks, cfg *config) *Response {
	resp := &Response{Status: StatusHealthy}
	if len(checks) == 0 {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	done := make(chan outcome, len(checks))
	for name, fn := range checks {
		go func() {
			done <- outcome{name: name, check: probe(ctx, fn)}
		}()
	}

	resp.Checks = make(map[string]Check, len(checks))
	for range checks {
		o := <-done
		if o.check.Status != StatusHealthy {
			resp.Status = StatusUnhealthy
			cfg.logger.WarnContext(ctx, "health check failed",
				slog.String("check", o.name),
				slog.String("error", o.check.Error),
			)
		}
		resp.Checks[o.name] = o.check
	}
	return resp
}

func probe(ctx context.Context, fn CheckFunc) Check {
	start := time.Now()
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ErrCheckTimeout
	}

	c := Check{Status: StatusHealthy, Latency: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		c.Status = StatusUnhealthy
		c.Error = err.Error()
	}
	return c
}
