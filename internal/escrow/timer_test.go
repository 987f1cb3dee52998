package escrow

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bechdo/bechdo/internal/ledger"
	"github.com/bechdo/bechdo/internal/payments"
)

func escrowWithReleaseAt(t *testing.T, env *testEnv, releaseAt time.Time) *ledger.Transaction {
	t.Helper()
	tx, order := initiate(t, env)
	verify(t, env, tx, order)
	got, err := env.ledger.Annotate(context.Background(), tx.ID, func(t *ledger.Transaction) {
		t.ReleaseAt = &releaseAt
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	return got
}

func TestSweep_ReleasesOnlyDueEscrows(t *testing.T) {
	env := newTestEnv()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	timer := NewTimer(env.svc, time.Minute, logger)

	due := escrowWithReleaseAt(t, env, time.Now().Add(-time.Hour))
	_ = env.listings.Release(context.Background(), "lst_1") // reopen for the second purchase
	notDue := escrowWithReleaseAt(t, env, time.Now().Add(time.Hour))

	timer.Sweep(context.Background())

	got, _ := env.ledger.Get(context.Background(), due.ID)
	if got.State != ledger.StateCompleted {
		t.Errorf("due escrow must complete, got %s", got.State)
	}
	if got.ReleasedBy != "" {
		t.Errorf("auto-release must record empty releasedBy, got %q", got.ReleasedBy)
	}

	got, _ = env.ledger.Get(context.Background(), notDue.ID)
	if got.State != ledger.StateHeldInEscrow {
		t.Errorf("future escrow must stay held, got %s", got.State)
	}
}

func TestSweep_OneFailureDoesNotStallBatch(t *testing.T) {
	env := newTestEnv()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	timer := NewTimer(env.svc, time.Minute, logger)

	first := escrowWithReleaseAt(t, env, time.Now().Add(-2*time.Hour))
	_ = env.listings.Release(context.Background(), "lst_1")
	second := escrowWithReleaseAt(t, env, time.Now().Add(-time.Hour))

	// Point the first at a gateway that is not configured so its release
	// errors out.
	if _, err := env.ledger.Annotate(context.Background(), first.ID, func(t *ledger.Transaction) {
		t.Gateway = payments.ProviderStripe
	}); err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	timer.Sweep(context.Background())

	got, _ := env.ledger.Get(context.Background(), first.ID)
	if got.State != ledger.StateHeldInEscrow {
		t.Errorf("first escrow should have stayed held, got %s", got.State)
	}
	got, _ = env.ledger.Get(context.Background(), second.ID)
	if got.State != ledger.StateCompleted {
		t.Errorf("second escrow must release despite first failing, got %s", got.State)
	}
}

func TestSweep_SkipsWhileSweepInProgress(t *testing.T) {
	env := newTestEnv()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	timer := NewTimer(env.svc, time.Minute, logger)

	// Hold the in-progress flag as a running sweep would.
	if !timer.sweeping.CompareAndSwap(false, true) {
		t.Fatal("could not mark sweep in progress")
	}

	due := escrowWithReleaseAt(t, env, time.Now().Add(-time.Hour))
	timer.Sweep(context.Background())

	got, _ := env.ledger.Get(context.Background(), due.ID)
	if got.State != ledger.StateHeldInEscrow {
		t.Errorf("overlapping sweep must be skipped, got %s", got.State)
	}

	timer.sweeping.Store(false)
	timer.Sweep(context.Background())
	got, _ = env.ledger.Get(context.Background(), due.ID)
	if got.State != ledger.StateCompleted {
		t.Errorf("next sweep must release, got %s", got.State)
	}
}

func TestSweep_ConcurrentWithManualRelease(t *testing.T) {
	env := newTestEnv()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	timer := NewTimer(env.svc, time.Minute, logger)

	tx := escrowWithReleaseAt(t, env, time.Now().Add(-time.Hour))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		timer.Sweep(context.Background())
	}()
	go func() {
		defer wg.Done()
		_, _ = env.svc.ReleaseEscrow(context.Background(), tx.ID, "usr_seller")
	}()
	wg.Wait()

	// The sweep and the manual release may both reach the gateway, but
	// only one commits the transition and credits the seller.
	got, _ := env.ledger.Get(context.Background(), tx.ID)
	if got.State != ledger.StateCompleted {
		t.Errorf("expected completed, got %s", got.State)
	}
	if env.stats.sales["usr_seller"] != 8775 {
		t.Errorf("seller must be credited exactly once, got %d", env.stats.sales["usr_seller"])
	}
}

func TestTimer_StartStop(t *testing.T) {
	env := newTestEnv()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	timer := NewTimer(env.svc, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timer.Start(ctx)

	deadline := time.After(time.Second)
	for !timer.Running() {
		select {
		case <-deadline:
			t.Fatal("timer never started")
		case <-time.After(time.Millisecond):
		}
	}

	timer.Stop()
	deadline = time.After(time.Second)
	for timer.Running() {
		select {
		case <-deadline:
			t.Fatal("timer never stopped")
		case <-time.After(time.Millisecond):
		}
	}
}
