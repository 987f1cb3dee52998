package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerOpsTotal counts ledger operations by type.
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bechdo",
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpDuration observes operation latency by type.
	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bechdo",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// TransitionsTotal counts committed state transitions by target state.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bechdo",
			Name:      "ledger_transitions_total",
			Help:      "Total committed transaction state transitions by target state.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerOpsTotal,
		LedgerOpDuration,
		TransitionsTotal,
	)
}

// observeOp increments the op counter and returns a func that observes the
// elapsed duration when called.
func observeOp(op string) func() {
	LedgerOpsTotal.WithLabelValues(op).Inc()
	start := time.Now()
	return func() {
		LedgerOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
