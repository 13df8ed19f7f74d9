package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the reputation package's Prometheus metrics.
type Metrics struct {
	adjustments  prometheus.Counter
	cachePending prometheus.Counter
	rebuilds     prometheus.Counter
	delta        prometheus.Histogram
}

// New creates and registers reputation metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		adjustments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_reputation_adjustments_total",
			Help: "Total number of accepted reputation adjustments",
		}),
		cachePending: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_reputation_cache_pending_total",
			Help: "Appended events whose cached-score update failed and awaits rebuild",
		}),
		rebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_reputation_score_rebuilds_total",
			Help: "Cached scores recomputed from the event log",
		}),
		delta: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sovid_reputation_adjustment_delta",
			Help:    "Distribution of adjustment deltas",
			Buckets: []float64{-50, -20, -10, -5, -1, 1, 5, 10, 20, 50},
		}),
	}
}

func (m *Metrics) IncAdjustment() {
	if m != nil {
		m.adjustments.Inc()
	}
}

func (m *Metrics) IncCachePending() {
	if m != nil {
		m.cachePending.Inc()
	}
}

func (m *Metrics) IncRebuild() {
	if m != nil {
		m.rebuilds.Inc()
	}
}

func (m *Metrics) ObserveDelta(delta int64) {
	if m != nil {
		m.delta.Observe(float64(delta))
	}
}
