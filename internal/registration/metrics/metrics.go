package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registration-domain Prometheus metrics.
type Metrics struct {
	RegistrationsTotal     *prometheus.CounterVec
	VisibilityWaitAttempts prometheus.Histogram
	VisibilityWaitSeconds  prometheus.Histogram
}

// New creates and registers the registration metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citizenly_registrations_total",
			Help: "Registration attempts by terminal outcome.",
		}, []string{"outcome"}),
		VisibilityWaitAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "citizenly_identity_visibility_attempts",
			Help:    "Lookups needed before a created identity became visible.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		VisibilityWaitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "citizenly_identity_visibility_wait_seconds",
			Help:    "Wall-clock time spent waiting for identity visibility.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

// Nil-safe recorders so the service can run without metrics in tests.

func (m *Metrics) IncrementOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVisibilityWait(attempts int, seconds float64) {
	if m == nil {
		return
	}
	m.VisibilityWaitAttempts.Observe(float64(attempts))
	m.VisibilityWaitSeconds.Observe(seconds)
}
