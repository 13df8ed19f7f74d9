package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification package's Prometheus metrics.
type Metrics struct {
	transitions   *prometheus.CounterVec
	awardFailures prometheus.Counter
}

// New creates and registers verification metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sovid_verification_transitions_total",
			Help: "Verification state transitions by resulting status",
		}, []string{"to"}),
		awardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_verification_award_failures_total",
			Help: "Verified-credential reputation awards that failed and await replay",
		}),
	}
}

func (m *Metrics) IncTransition(to string) {
	if m != nil {
		m.transitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) IncAwardFailure() {
	if m != nil {
		m.awardFailures.Inc()
	}
}
