package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bechdo/bechdo/internal/testutil"
)

func pgSub() *Subscription {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Subscription{
		ID:          "sub_pgtest1",
		UserID:      "usr_1",
		Plan:        PlanBasic,
		Status:      StatusActive,
		StartDate:   now,
		EndDate:     now.Add(ResetPeriod),
		LastResetAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresStore_ConsumeUsage_StopsAtLimit(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := pgSub()
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.ConsumeUsage(ctx, sub.ID, UsageListings, 3); err != nil {
			t.Fatalf("ConsumeUsage %d failed: %v", i, err)
		}
	}

	err := store.ConsumeUsage(ctx, sub.ID, UsageListings, 3)
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if qe.Used != 3 || qe.Limit != 3 {
		t.Errorf("unexpected quota numbers: %+v", qe)
	}
}

func TestPostgresStore_ConsumeUsage_ZeroLimitUnlimited(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := pgSub()
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := store.ConsumeUsage(ctx, sub.ID, UsageAds, 0); err != nil {
			t.Fatalf("unlimited consume failed at %d: %v", i, err)
		}
	}
}

func TestPostgresStore_ResetUsageIfDue_GuardsOnCutoff(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := pgSub()
	sub.ListingsUsed = 5
	sub.LastResetAt = time.Now().UTC().Add(-ResetPeriod - time.Hour)
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC()
	cutoff := now.Add(-ResetPeriod)
	if err := store.ResetUsageIfDue(ctx, sub.ID, cutoff, now); err != nil {
		t.Fatalf("ResetUsageIfDue failed: %v", err)
	}

	got, err := store.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ListingsUsed != 0 {
		t.Errorf("expected reset counters, got %d", got.ListingsUsed)
	}

	// A second reset inside the fresh window must be a no-op.
	if err := store.ConsumeUsage(ctx, sub.ID, UsageListings, 10); err != nil {
		t.Fatalf("ConsumeUsage failed: %v", err)
	}
	if err := store.ResetUsageIfDue(ctx, sub.ID, cutoff, now.Add(time.Second)); err != nil {
		t.Fatalf("ResetUsageIfDue failed: %v", err)
	}
	got, _ = store.Get(ctx, sub.ID)
	if got.ListingsUsed != 1 {
		t.Errorf("reset must not apply inside the window, got %d", got.ListingsUsed)
	}
}

func TestPostgresStore_GetActiveByUser(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	old := pgSub()
	old.ID = "sub_old"
	old.Status = StatusCancelled
	if err := store.Create(ctx, old); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	active := pgSub()
	active.ID = "sub_active"
	active.CreatedAt = active.CreatedAt.Add(time.Second)
	if err := store.Create(ctx, active); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetActiveByUser(ctx, "usr_1")
	if err != nil {
		t.Fatalf("GetActiveByUser failed: %v", err)
	}
	if got.ID != "sub_active" {
		t.Errorf("expected sub_active, got %s", got.ID)
	}

	if _, err := store.GetActiveByUser(ctx, "usr_nobody"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
}
