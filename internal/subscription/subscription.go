// Package subscription gates listing and ad creation behind per-plan
// monthly quotas.
//
// Flow:
//  1. User purchases a plan → subscription created (pending until paid,
//     active immediately for the free basic tier)
//  2. Listing/ad creation calls CanCreateListing / CanPostAd as a gate
//  3. After the creation persists, the matching Increment* is called
//  4. Counters reset lazily when the 30-day window rolls over
//
// The check-then-increment race is closed by the store: ConsumeUsage is a
// single conditional increment that fails rather than passing the limit.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bechdo/bechdo/internal/idgen"
	"github.com/bechdo/bechdo/internal/metrics"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription: not found")
	ErrQuotaExceeded        = errors.New("subscription: quota exceeded")
	ErrAlreadyActive        = errors.New("subscription: user already has an active subscription")
	ErrNotActive            = errors.New("subscription: no active subscription")
	ErrInvalidPlan          = errors.New("subscription: unknown plan")
	ErrNotAnUpgrade         = errors.New("subscription: target plan is not higher than the current plan")
)

// Status represents a subscription's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending" // awaiting payment
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// UsageKind names a quota-gated action.
type UsageKind string

const (
	UsageListings UsageKind = "listings"
	UsageAds      UsageKind = "ads"
)

// ResetPeriod is the billing window length. Counters reset lazily when a
// check happens at least this long after the last reset.
const ResetPeriod = 30 * 24 * time.Hour

// Subscription represents one user's plan instance. Never hard-deleted;
// cancelled and expired rows are kept for billing history.
type Subscription struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Plan         Plan      `json:"plan"`
	Status       Status    `json:"status"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	ListingsUsed int       `json:"listingsUsed"`
	AdsUsed      int       `json:"adsUsed"`
	LastResetAt  time.Time `json:"lastResetAt"`
	Upgraded     bool      `json:"upgraded"` // carries the old plan's billing window

	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// QuotaError reports which limit was hit, with the numbers the caller
// needs to present an upgrade path.
type QuotaError struct {
	Kind  UsageKind
	Used  int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("subscription: %s quota exceeded (%d/%d used this period)", e.Kind, e.Used, e.Limit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Quota is the current standing for one usage kind.
type Quota struct {
	Kind      UsageKind `json:"kind"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"` // 0 = unlimited
	Unlimited bool      `json:"unlimited"`
}

// Remaining returns how many actions are left (0 when unlimited is false
// and the limit is reached; meaningless when Unlimited).
func (q Quota) Remaining() int {
	if q.Unlimited {
		return 0
	}
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// Allowed reports whether one more action fits.
func (q Quota) Allowed() bool {
	return q.Unlimited || q.Used < q.Limit
}

// Store persists subscriptions. ConsumeUsage must be atomic: a conditional
// increment executed against the stored counters that fails with a
// *QuotaError instead of passing the limit, so two concurrent creations
// cannot both slip through. ResetUsageIfDue must only reset when the
// stored last_reset_at is at or before the cutoff, making the lazy reset
// idempotent across concurrent checks.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetActiveByUser(ctx context.Context, userID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	ConsumeUsage(ctx context.Context, id string, kind UsageKind, limit int) error
	ResetUsageIfDue(ctx context.Context, id string, cutoff, now time.Time) error
}

// Tracker implements the quota gate and subscription lifecycle.
type Tracker struct {
	store Store
}

// NewTracker creates a quota tracker.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// current returns the user's active subscription with the lazy window
// maintenance applied: expire past end date, reset counters past the
// 30-day mark. A user with no subscription at all is provisioned onto
// the free basic tier.
func (t *Tracker) current(ctx context.Context, userID string) (*Subscription, PlanConfig, error) {
	now := time.Now()

	sub, err := t.store.GetActiveByUser(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		sub, err = t.provisionBasic(ctx, userID, now)
	}
	if err != nil {
		return nil, PlanConfig{}, err
	}

	// Lazy expiry. An expired paid plan falls back to basic on the next call.
	if now.After(sub.EndDate) {
		sub.Status = StatusExpired
		sub.UpdatedAt = now
		if err := t.store.Update(ctx, sub); err != nil {
			return nil, PlanConfig{}, fmt.Errorf("subscription: expire: %w", err)
		}
		sub, err = t.provisionBasic(ctx, userID, now)
		if err != nil {
			return nil, PlanConfig{}, err
		}
	}

	// Lazy counter reset, never retroactive: the reset date advances to
	// now, not to lastReset+30d.
	if now.Sub(sub.LastResetAt) >= ResetPeriod {
		cutoff := now.Add(-ResetPeriod)
		if err := t.store.ResetUsageIfDue(ctx, sub.ID, cutoff, now); err != nil {
			return nil, PlanConfig{}, fmt.Errorf("subscription: reset usage: %w", err)
		}
		sub, err = t.store.Get(ctx, sub.ID)
		if err != nil {
			return nil, PlanConfig{}, err
		}
	}

	cfg, ok := Plans[sub.Plan]
	if !ok {
		return nil, PlanConfig{}, fmt.Errorf("%w: %q", ErrInvalidPlan, sub.Plan)
	}
	return sub, cfg, nil
}

func (t *Tracker) provisionBasic(ctx context.Context, userID string, now time.Time) (*Subscription, error) {
	sub := &Subscription{
		ID:          idgen.WithPrefix("sub_"),
		UserID:      userID,
		Plan:        PlanBasic,
		Status:      StatusActive,
		StartDate:   now,
		EndDate:     now.Add(ResetPeriod),
		LastResetAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: provision basic: %w", err)
	}
	return sub, nil
}

// CanCreateListing reports whether the user may create another listing
// this period, with the quota standing either way.
func (t *Tracker) CanCreateListing(ctx context.Context, userID string) (Quota, error) {
	return t.quota(ctx, userID, UsageListings)
}

// CanPostAd reports whether the user may post another promoted ad.
func (t *Tracker) CanPostAd(ctx context.Context, userID string) (Quota, error) {
	return t.quota(ctx, userID, UsageAds)
}

func (t *Tracker) quota(ctx context.Context, userID string, kind UsageKind) (Quota, error) {
	sub, cfg, err := t.current(ctx, userID)
	if err != nil {
		return Quota{}, err
	}

	q := Quota{Kind: kind}
	switch kind {
	case UsageListings:
		q.Used, q.Limit = sub.ListingsUsed, cfg.MaxListings
	case UsageAds:
		q.Used, q.Limit = sub.AdsUsed, cfg.MaxAds
	}
	q.Unlimited = q.Limit == 0
	return q, nil
}

// IncrementListingUsage consumes one listing slot. Call only after the
// listing has been persisted. Returns *QuotaError if the increment would
// pass the plan limit.
func (t *Tracker) IncrementListingUsage(ctx context.Context, userID string) error {
	return t.consume(ctx, userID, UsageListings)
}

// IncrementAdUsage consumes one promoted-ad slot.
func (t *Tracker) IncrementAdUsage(ctx context.Context, userID string) error {
	return t.consume(ctx, userID, UsageAds)
}

func (t *Tracker) consume(ctx context.Context, userID string, kind UsageKind) error {
	sub, cfg, err := t.current(ctx, userID)
	if err != nil {
		return err
	}

	limit := cfg.MaxListings
	if kind == UsageAds {
		limit = cfg.MaxAds
	}
	if err := t.store.ConsumeUsage(ctx, sub.ID, kind, limit); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			metrics.QuotaDenialsTotal.WithLabelValues(string(kind)).Inc()
		}
		return err
	}
	return nil
}

// Purchase starts a paid subscription. It comes back pending; Activate
// flips it to active once the payment is verified.
func (t *Tracker) Purchase(ctx context.Context, userID string, plan Plan) (*Subscription, error) {
	cfg, ok := Plans[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	now := time.Now()
	sub := &Subscription{
		ID:          idgen.WithPrefix("sub_"),
		UserID:      userID,
		Plan:        cfg.Plan,
		Status:      StatusPending,
		StartDate:   now,
		EndDate:     now.Add(ResetPeriod),
		LastResetAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: create: %w", err)
	}
	return sub, nil
}

// Activate marks a pending subscription active, cancelling any previously
// active one first so at most one active subscription exists per user.
// A fresh purchase starts a new 30-day window from now; a subscription
// created by Upgrade keeps the window and reset clock it inherited.
func (t *Tracker) Activate(ctx context.Context, id string) (*Subscription, error) {
	sub, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusActive {
		return sub, nil // duplicate payment webhook
	}
	if sub.Status != StatusPending {
		return nil, fmt.Errorf("subscription: cannot activate %s subscription", sub.Status)
	}

	now := time.Now()
	if prev, err := t.store.GetActiveByUser(ctx, sub.UserID); err == nil {
		prev.Status = StatusCancelled
		prev.UpdatedAt = now
		if err := t.store.Update(ctx, prev); err != nil {
			return nil, fmt.Errorf("subscription: supersede previous: %w", err)
		}
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	sub.Status = StatusActive
	if !sub.Upgraded {
		sub.StartDate = now
		sub.EndDate = now.Add(ResetPeriod)
		sub.LastResetAt = now
	}
	sub.UpdatedAt = now
	if err := t.store.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: activate: %w", err)
	}
	return sub, nil
}

// Cancel ends the user's active subscription. The row is kept for
// billing history.
func (t *Tracker) Cancel(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := t.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub.Status = StatusCancelled
	sub.UpdatedAt = time.Now()
	if err := t.store.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: cancel: %w", err)
	}
	return sub, nil
}

// Upgrade moves the user to a higher plan mid-period. The unused days of
// the old plan convert to a price credit (day rate × remaining days);
// usage counters carry over unchanged — an upgrade never grants a fresh
// window. Returns the new pending subscription and the amount due in
// minor units.
func (t *Tracker) Upgrade(ctx context.Context, userID string, plan Plan) (*Subscription, int64, error) {
	cfg, ok := Plans[plan]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	old, err := t.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	oldCfg := Plans[old.Plan]
	if cfg.Tier <= oldCfg.Tier {
		return nil, 0, fmt.Errorf("%w: %s to %s", ErrNotAnUpgrade, old.Plan, plan)
	}

	now := time.Now()
	remainingDays := int64(old.EndDate.Sub(now).Hours() / 24)
	if remainingDays < 0 {
		remainingDays = 0
	}
	credit := (oldCfg.PriceMinorUnits / 30) * remainingDays
	due := cfg.PriceMinorUnits - credit
	if due < 0 {
		due = 0
	}

	sub := &Subscription{
		ID:           idgen.WithPrefix("sub_"),
		UserID:       userID,
		Plan:         cfg.Plan,
		Status:       StatusPending,
		StartDate:    now,
		EndDate:      old.EndDate,
		ListingsUsed: old.ListingsUsed,
		AdsUsed:      old.AdsUsed,
		LastResetAt:  old.LastResetAt,
		Upgraded:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.store.Create(ctx, sub); err != nil {
		return nil, 0, fmt.Errorf("subscription: create upgrade: %w", err)
	}
	return sub, due, nil
}

// Get returns the user's active subscription (provisioning basic if none).
func (t *Tracker) Get(ctx context.Context, userID string) (*Subscription, error) {
	sub, _, err := t.current(ctx, userID)
	return sub, err
}
