package escrow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EscrowOpsTotal counts escrow operations by type.
	EscrowOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bechdo",
			Name:      "escrow_operations_total",
			Help:      "Total escrow operations by type.",
		},
		[]string{"type"},
	)

	// EscrowOpDuration observes operation latency by type.
	EscrowOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bechdo",
			Name:      "escrow_operation_duration_seconds",
			Help:      "Escrow operation duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"type"},
	)

	// AutoReleasesTotal counts scheduler release attempts by outcome.
	AutoReleasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bechdo",
			Name:      "escrow_auto_releases_total",
			Help:      "Total scheduler auto-release attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ReconciliationEventsTotal counts money/ledger divergences needing
	// manual review, by failed operation.
	ReconciliationEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bechdo",
			Name:      "escrow_reconciliation_events_total",
			Help:      "Total reconciliation events requiring manual review.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		EscrowOpsTotal,
		EscrowOpDuration,
		AutoReleasesTotal,
		ReconciliationEventsTotal,
	)
}

// observeOp increments the op counter and returns a func that observes the
// elapsed duration when called.
func observeOp(op string) func() {
	EscrowOpsTotal.WithLabelValues(op).Inc()
	start := time.Now()
	return func() {
		EscrowOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
