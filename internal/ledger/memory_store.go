package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bechdo/bechdo/internal/pagination"
)

// MemoryStore is an in-memory transaction store for demo/development mode.
// CompareAndUpdate performs the state check and the write under one lock,
// giving the same serialization guarantee as the SQL conditional update.
type MemoryStore struct {
	txns map[string]*Transaction
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns: make(map[string]*Transaction),
	}
}

func (m *MemoryStore) Create(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txns[tx.ID] = copyTxn(tx)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txns[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return copyTxn(tx), nil
}

func (m *MemoryStore) CompareAndUpdate(ctx context.Context, tx *Transaction, expected State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.txns[tx.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	if stored.State != expected {
		return ErrStateConflict
	}
	m.txns[tx.ID] = copyTxn(tx)
	return nil
}

func (m *MemoryStore) ListReleasable(ctx context.Context, before time.Time, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.txns {
		if tx.State == StateHeldInEscrow && tx.ReleaseAt != nil && !tx.ReleaseAt.After(before) {
			result = append(result, copyTxn(tx))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.txns {
		if tx.BuyerID != userID && tx.SellerID != userID {
			continue
		}
		if before != nil && !olderThan(tx, before) {
			continue
		}
		result = append(result, copyTxn(tx))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListByState(ctx context.Context, state State, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.txns {
		if tx.State == state {
			result = append(result, copyTxn(tx))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// olderThan reports whether tx sorts strictly after the cursor position
// in (created_at DESC, id DESC) order.
func olderThan(tx *Transaction, c *pagination.Cursor) bool {
	if tx.CreatedAt.Equal(c.CreatedAt) {
		return tx.ID < c.ID
	}
	return tx.CreatedAt.Before(c.CreatedAt)
}

// copyTxn returns a deep copy. Shallow copy shares the Timeline backing
// array, so an append on the copy could mutate the stored transaction.
func copyTxn(tx *Transaction) *Transaction {
	cp := *tx
	if tx.Timeline != nil {
		cp.Timeline = make([]TimelineEntry, len(tx.Timeline))
		copy(cp.Timeline, tx.Timeline)
	}
	return &cp
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
