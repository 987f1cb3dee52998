package subscription

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory subscription store for demo/development
// mode. ConsumeUsage and ResetUsageIfDue run their check and write under
// one lock, matching the SQL conditional-update semantics.
type MemoryStore struct {
	subs map[string]*Subscription
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[string]*Subscription),
	}
}

func (m *MemoryStore) Create(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[sub.ID] = copySub(sub)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return copySub(sub), nil
}

func (m *MemoryStore) GetActiveByUser(ctx context.Context, userID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *Subscription
	for _, sub := range m.subs {
		if sub.UserID != userID || sub.Status != StatusActive {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return copySub(newest), nil
}

func (m *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.subs[sub.ID] = copySub(sub)
	return nil
}

func (m *MemoryStore) ConsumeUsage(ctx context.Context, id string, kind UsageKind, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}

	used := sub.ListingsUsed
	if kind == UsageAds {
		used = sub.AdsUsed
	}
	if limit > 0 && used >= limit {
		return &QuotaError{Kind: kind, Used: used, Limit: limit}
	}

	if kind == UsageAds {
		sub.AdsUsed++
	} else {
		sub.ListingsUsed++
	}
	sub.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ResetUsageIfDue(ctx context.Context, id string, cutoff, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.LastResetAt.After(cutoff) {
		return nil // another caller already reset this window
	}
	sub.ListingsUsed = 0
	sub.AdsUsed = 0
	sub.LastResetAt = now
	sub.UpdatedAt = now
	return nil
}

func copySub(sub *Subscription) *Subscription {
	cp := *sub
	return &cp
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
