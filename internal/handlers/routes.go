package handlers

import (
	"net/http"

	"github.com/spana/mailgate/internal"
)

// APIPrefix is the path prefix of the original deployment. Every route is
// served both at the root and below it.
const APIPrefix = "/api"

type aliased struct {
	prefix   string
	handlers []internal.Handler
}

// Aliased registers handlers at the root and again under prefix.
// Handlers must be grouped here because a prefix can only be mounted once.
func Aliased(prefix string, handlers ...internal.Handler) internal.Handler {
	return &aliased{prefix: prefix, handlers: handlers}
}

func (a *aliased) Routes(r internal.Router) {
	for _, h := range a.handlers {
		h.Routes(r)
	}
	r.Route(a.prefix, func(r internal.Router) {
		for _, h := range a.handlers {
			h.Routes(r)
		}
	})
}

// Metrics exposes a Prometheus handler at /metrics.
type Metrics struct {
	handler http.Handler
}

// NewMetrics wraps an exposition handler such as metrics.Metrics.Handler().
func NewMetrics(h http.Handler) *Metrics {
	return &Metrics{handler: h}
}

func (m *Metrics) Routes(r internal.Router) {
	r.Mount("/metrics", m.handler)
}
