package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/pkg/health"
	"github.com/spana/mailgate/pkg/mailer"
)

// Health status values reported by the service-level probe.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

const defaultHealthTimeout = 10 * time.Second

var errProviderDown = errors.New("provider not live")

// Liveness is the part of the dispatcher the health probe reads.
type Liveness interface {
	Configured(name string) bool
	CheckRelayLiveness(ctx context.Context) bool
	CheckHostedAPILiveness(ctx context.Context) bool
}

// Health serves the service probe at / and /health.
type Health struct {
	providers Liveness
	checks    health.Checks
	service   string
	version   string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// HealthOption configures Health.
type HealthOption func(*Health)

// WithService sets the service name and version shown in the payload.
func WithService(name, version string) HealthOption {
	return func(h *Health) {
		if name != "" {
			h.service = name
		}
		if version != "" {
			h.version = version
		}
	}
}

// WithDependency adds a named dependency check, e.g. redis.
func WithDependency(name string, check health.CheckFunc) HealthOption {
	return func(h *Health) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// WithHealthTimeout bounds the whole probe. Defaults to 10 seconds.
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(h *Health) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHealthLogger sets the logger for failed checks.
func WithHealthLogger(l *slog.Logger) HealthOption {
	return func(h *Health) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHealthClock overrides the timestamp source.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *Health) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHealth creates the service probe.
func NewHealth(providers Liveness, opts ...HealthOption) *Health {
	h := &Health{
		providers: providers,
		checks:    health.Checks{},
		service:   "spana-email-service",
		version:   "1.0.0",
		timeout:   defaultHealthTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the probe.
func (h *Health) Routes(r internal.Router) {
	r.GET("/", h.report)
	r.GET("/health", h.report)
}

type providerStatus struct {
	Configured bool `json:"configured"`
	Live       bool `json:"live"`
}

type healthResponse struct {
	Timestamp time.Time                 `json:"timestamp"`
	Providers map[string]providerStatus `json:"providers"`
	Checks    map[string]health.Check   `json:"checks,omitempty"`
	Status    string                    `json:"status"`
	Service   string                    `json:"service"`
	Version   string                    `json:"version"`
}

// report always answers 200. Provider liveness is advisory, so a dead
// provider degrades the status instead of failing the probe.
func (h *Health) report(c internal.Context) error {
	probes := map[string]func(context.Context) bool{
		mailer.ProviderRelay:     h.providers.CheckRelayLiveness,
		mailer.ProviderHostedAPI: h.providers.CheckHostedAPILiveness,
	}

	checks := make(health.Checks, len(h.checks)+len(probes))
	for name, check := range h.checks {
		checks[name] = check
	}
	for name, probe := range probes {
		if !h.providers.Configured(name) {
			continue
		}
		checks[name] = func(ctx context.Context) error {
			if !probe(ctx) {
				return errProviderDown
			}
			return nil
		}
	}

	opts := []health.Option{health.WithTimeout(h.timeout)}
	if h.logger != nil {
		opts = append(opts, health.WithLogger(h.logger))
	}
	res := health.Run(c, checks, opts...)

	anyLive := false
	providers := make(map[string]providerStatus, len(probes))
	for name := range probes {
		st := providerStatus{Configured: h.providers.Configured(name)}
		if check, ok := res.Checks[name]; ok {
			st.Live = check.Status == health.StatusHealthy
			delete(res.Checks, name)
		}
		anyLive = anyLive || st.Live
		providers[name] = st
	}

	status := StatusHealthy
	if !anyLive {
		status = StatusDegraded
	}
	for _, check := range res.Checks {
		if check.Status != health.StatusHealthy {
			status = StatusDegraded
		}
	}

	return c.JSON(http.StatusOK, healthResponse{
		Status:    status,
		Service:   h.service,
		Version:   h.version,
		Timestamp: h.now().UTC(),
		Providers: providers,
		Checks:    res.Checks,
	})
}
