package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP collectors on their own registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// NewMetrics registers the request and rate-limit collectors along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noodle_http_requests_total",
			Help: "HTTP requests by procedure and status code.",
		}, []string{"procedure", "code"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noodle_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by procedure.",
		}, []string{"procedure"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
