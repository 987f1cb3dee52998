package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultSweepInterval is how often the timer looks for releasable escrows.
const DefaultSweepInterval = 5 * time.Minute

// Timer periodically releases escrows whose hold period has elapsed.
// A tick that arrives while the previous sweep is still running is
// skipped rather than queued, so slow sweeps never pile up.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
	sweeping atomic.Bool
}

// NewTimer creates an auto-release timer. interval <= 0 falls back to
// DefaultSweepInterval.
func NewTimer(service *Service, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Timer{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the auto-release loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

// Sweep runs one release pass. Exported so ops endpoints and tests can
// trigger it directly. Returns immediately if a sweep is in progress.
func (t *Timer) Sweep(ctx context.Context) {
	if !t.sweeping.CompareAndSwap(false, true) {
		t.logger.Debug("sweep already in progress, skipping tick")
		return
	}
	defer t.sweeping.Store(false)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in escrow timer", "panic", fmt.Sprint(r))
		}
	}()
	t.releaseDue(ctx)
}

func (t *Timer) releaseDue(ctx context.Context) {
	due, err := t.service.ledger.ListReleasable(ctx, time.Now(), 100)
	if err != nil {
		t.logger.Warn("failed to list releasable escrows", "error", err)
		return
	}

	for _, tx := range due {
		// One bad transaction must not stall the rest of the batch.
		if _, err := t.service.ReleaseEscrow(ctx, tx.ID, ""); err != nil {
			AutoReleasesTotal.WithLabelValues("failure").Inc()
			t.logger.Warn("failed to auto-release escrow",
				"txnId", tx.ID,
				"error", err,
			)
			continue
		}
		AutoReleasesTotal.WithLabelValues("success").Inc()
		t.logger.Info("auto-released escrow",
			"txnId", tx.ID,
			"seller", tx.SellerID,
			"amount", tx.FinalPrice,
		)
	}
}
