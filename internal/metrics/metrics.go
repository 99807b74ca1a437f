// Package metrics exposes Prometheus metrics for dispatch attempts,
// provider liveness and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/pkg/mailer"
)

const namespace = "mailgate"

// Metrics records dispatcher and HTTP metrics on its own registry.
// It implements mailer.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// attempts counts provider attempts.
	// Labels: provider, type, outcome ("success" or "failure"), code (provider sub-code or "none").
	attempts *prometheus.CounterVec

	// attemptDuration tracks how long each provider attempt took.
	attemptDuration *prometheus.HistogramVec

	// liveness is 1 when the last uncached check of a provider succeeded.
	liveness *prometheus.GaugeVec

	// livenessChecks counts uncached liveness checks by result.
	livenessChecks *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ mailer.Observer = (*Metrics)(nil)

// New creates a Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Provider delivery attempts by outcome",
			},
			[]string{"provider", "type", "outcome", "code"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of a single provider delivery attempt",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 65},
			},
			[]string{"provider", "outcome"},
		),
		liveness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "live",
				Help:      "Result of the last uncached liveness check (1 live, 0 not)",
			},
			[]string{"provider"},
		),
		livenessChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "liveness_checks_total",
				Help:      "Uncached provider liveness checks by result",
			},
			[]string{"provider", "live"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AttemptFinished implements mailer.Observer.
func (m *Metrics) AttemptFinished(provider, msgType string, err error, elapsed time.Duration) {
	outcome, code := "success", "none"
	if err != nil {
		outcome, code = "failure", mailer.ErrorCode(err)
		if code == "" {
			code = "unknown"
		}
	}
	if msgType == "" {
		msgType = mailer.TypeGeneric
	}
	m.attempts.WithLabelValues(provider, msgType, outcome, code).Inc()
	m.attemptDuration.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
}

// LivenessChecked implements mailer.Observer.
func (m *Metrics) LivenessChecked(provider string, live bool) {
	v := 0.0
	if live {
		v = 1
	}
	m.liveness.WithLabelValues(provider).Set(v)
	m.livenessChecks.WithLabelValues(provider, strconv.FormatBool(live)).Inc()
}

// Middleware records request counts and latency. Requests that match no
// route are grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware() internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			start := time.Now()
			err := next(c)

			status := c.ResponseWriter().Status()
			if err != nil && !c.Written() {
				status = http.StatusInternalServerError
				if httpErr := internal.AsHTTPError(err); httpErr != nil {
					status = httpErr.Code
				}
			}

			route := routePattern(c.Request())
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
