package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the identity package's Prometheus metrics.
type Metrics struct {
	issued         prometheus.Counter
	duplicateRetry prometheus.Counter
	mirrorPending  prometheus.Counter
	reconciled     prometheus.Counter
	issueDuration  prometheus.Histogram
}

// New creates and registers identity metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_dids_issued_total",
			Help: "Total number of DIDs issued",
		}),
		duplicateRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_did_duplicate_retries_total",
			Help: "Ledger duplicate-DID rejections absorbed by re-derivation",
		}),
		mirrorPending: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_did_mirror_pending_total",
			Help: "Ledger writes whose mirror write failed and awaits reconciliation",
		}),
		reconciled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sovid_did_mirrors_reconciled_total",
			Help: "DID mirrors repaired by the reconciliation pass",
		}),
		issueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sovid_did_issue_duration_seconds",
			Help:    "Latency of DID issuance including ledger round trips",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) IncDuplicateRetry() {
	if m != nil {
		m.duplicateRetry.Inc()
	}
}

func (m *Metrics) IncMirrorPending() {
	if m != nil {
		m.mirrorPending.Inc()
	}
}

func (m *Metrics) IncReconciled() {
	if m != nil {
		m.reconciled.Inc()
	}
}

func (m *Metrics) ObserveIssueDuration(d time.Duration) {
	if m != nil {
		m.issueDuration.Observe(d.Seconds())
	}
}
