package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the platform-wide Prometheus metrics.
type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates and registers all platform metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citizenly_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method, and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "citizenly_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
	}
}

// ObserveRequest records one served request. Nil-safe so handlers can run
// without metrics in tests.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
