// Package ledger is the single source of truth for a purchase's lifecycle.
//
// A Transaction moves through a closed state machine:
//
//	pending → held_in_escrow → completed
//	pending → failed | cancelled
//	held_in_escrow → refunded | disputed
//	disputed → completed | refunded
//	completed → refunded
//
// Every transition appends a timeline entry and is committed with a
// compare-and-swap on the state column, so concurrent transitions on the
// same transaction serialize and losers see ErrInvalidStateTransition or
// ErrStateConflict rather than clobbering each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bechdo/bechdo/internal/fees"
	"github.com/bechdo/bechdo/internal/idgen"
	"github.com/bechdo/bechdo/internal/pagination"
	"github.com/bechdo/bechdo/internal/payments"
)

var (
	ErrTransactionNotFound    = errors.New("ledger: transaction not found")
	ErrInvalidStateTransition = errors.New("ledger: invalid state transition")
	ErrStateConflict          = errors.New("ledger: transaction state changed concurrently")
	ErrInvalidAmount          = errors.New("ledger: amount must be positive")
	ErrInvalidCursor          = errors.New("ledger: invalid pagination cursor")
)

// State is a transaction lifecycle state.
type State string

const (
	StatePending      State = "pending"
	StateHeldInEscrow State = "held_in_escrow"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
	StateRefunded     State = "refunded"
	StateDisputed     State = "disputed"
)

// transitions is the closed edge set. A state missing from the map is
// terminal. completed keeps a refund edge for post-release refunds.
var transitions = map[State][]State{
	StatePending:      {StateHeldInEscrow, StateFailed, StateCancelled},
	StateHeldInEscrow: {StateCompleted, StateRefunded, StateDisputed},
	StateDisputed:     {StateCompleted, StateRefunded},
	StateCompleted:    {StateRefunded},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing edges.
func IsTerminal(s State) bool {
	return len(transitions[s]) == 0
}

// TimelineEntry is one append-only audit record. Entries are never mutated.
type TimelineEntry struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
	Note  string    `json:"note,omitempty"`
}

// Transaction represents one buyer↔seller purchase of one listing.
// Monetary values are integer minor units.
type Transaction struct {
	ID        string `json:"id"`
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	ListingID string `json:"listingId"`

	OriginalPrice int64          `json:"originalPrice"`
	FinalPrice    int64          `json:"finalPrice"`
	Currency      string         `json:"currency"`
	Fees          fees.Breakdown `json:"fees"`

	Gateway           payments.Provider  `json:"gateway"`
	OrderID           string             `json:"orderId,omitempty"`
	PaymentID         string             `json:"paymentId,omitempty"`
	RefundID          string             `json:"refundId,omitempty"`
	PaymentMethod     fees.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentInstrument string             `json:"paymentInstrument,omitempty"`

	State State `json:"state"`

	HoldPeriodDays int        `json:"holdPeriodDays"`
	ReleaseAt      *time.Time `json:"releaseAt,omitempty"`
	Released       bool       `json:"released"`
	ReleasedBy     string     `json:"releasedBy,omitempty"` // empty = system auto-release

	RefundAmount int64      `json:"refundAmount,omitempty"`
	RefundReason string     `json:"refundReason,omitempty"`
	RefundedBy   string     `json:"refundedBy,omitempty"`
	RefundedAt   *time.Time `json:"refundedAt,omitempty"`

	DisputeReason string `json:"disputeReason,omitempty"`
	DisputedBy    string `json:"disputedBy,omitempty"`

	Timeline  []TimelineEntry `json:"timeline"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ChargeAmount is what the gateway captures: final price plus all fees.
func (t *Transaction) ChargeAmount() int64 {
	return t.FinalPrice + t.Fees.Total
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return IsTerminal(t.State)
}

// Store persists transactions. CompareAndUpdate must only write when the
// stored state equals expected, returning ErrStateConflict otherwise — this
// is the row-level serialization primitive every transition relies on.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	CompareAndUpdate(ctx context.Context, tx *Transaction, expected State) error
	ListReleasable(ctx context.Context, before time.Time, limit int) ([]*Transaction, error)
	ListByUser(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]*Transaction, error)
	ListByState(ctx context.Context, state State, limit int) ([]*Transaction, error)
}

// CreateParams are the immutable facts of a new purchase.
type CreateParams struct {
	BuyerID        string
	SellerID       string
	ListingID      string
	OriginalPrice  int64
	FinalPrice     int64
	Currency       string
	Fees           fees.Breakdown
	Gateway        payments.Provider
	HoldPeriodDays int
}

// Service owns all transaction mutations. Nothing else writes the ledger.
type Service struct {
	store Store
}

// NewService creates a ledger service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create records a new pending transaction.
// final_price may exceed original_price (negotiation can add extras); that
// case is flagged in the timeline but not rejected. Positivity is enforced.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Transaction, error) {
	done := observeOp("create")
	defer done()

	if p.FinalPrice <= 0 || p.OriginalPrice <= 0 {
		return nil, fmt.Errorf("%w: original=%d final=%d", ErrInvalidAmount, p.OriginalPrice, p.FinalPrice)
	}

	now := time.Now()
	note := "purchase initiated"
	if p.FinalPrice > p.OriginalPrice {
		note = "purchase initiated (negotiated price above listing price)"
	}

	tx := &Transaction{
		ID:             idgen.WithPrefix("txn_"),
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		ListingID:      p.ListingID,
		OriginalPrice:  p.OriginalPrice,
		FinalPrice:     p.FinalPrice,
		Currency:       p.Currency,
		Fees:           p.Fees,
		Gateway:        p.Gateway,
		State:          StatePending,
		HoldPeriodDays: p.HoldPeriodDays,
		Timeline: []TimelineEntry{
			{State: StatePending, At: now, Note: note},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("ledger: create transaction: %w", err)
	}
	return tx, nil
}

// transitionRetries bounds the CAS retry loop. A conflict means another
// worker transitioned the same transaction; after the re-read the edge is
// usually no longer legal and the loop exits with
// ErrInvalidStateTransition instead.
const transitionRetries = 3

// Transition moves a transaction to a new state, appending a timeline
// entry. mutate (optional) edits non-state fields under the same commit.
// An illegal edge returns ErrInvalidStateTransition and changes nothing.
func (s *Service) Transition(ctx context.Context, id string, to State, note string, mutate func(*Transaction)) (*Transaction, error) {
	done := observeOp("transition")
	defer done()

	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		tx, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if !CanTransition(tx.State, to) {
			return nil, fmt.Errorf("%w: %s → %s (txn %s)", ErrInvalidStateTransition, tx.State, to, id)
		}

		from := tx.State
		now := time.Now()
		tx.State = to
		if mutate != nil {
			mutate(tx)
		}
		tx.Timeline = append(tx.Timeline, TimelineEntry{State: to, At: now, Note: note})
		tx.UpdatedAt = now

		err = s.store.CompareAndUpdate(ctx, tx, from)
		if errors.Is(err, ErrStateConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		TransitionsTotal.WithLabelValues(string(to)).Inc()
		return tx, nil
	}
	return nil, lastErr
}

// TransitionFrom commits a transition only while the transaction is
// still in the state the caller observed. Used where a side effect (a
// gateway capture or refund) was performed on the strength of that
// observation: unlike Transition it never retries onto a different edge.
func (s *Service) TransitionFrom(ctx context.Context, id string, from, to State, note string, mutate func(*Transaction)) (*Transaction, error) {
	done := observeOp("transition")
	defer done()

	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s → %s (txn %s)", ErrInvalidStateTransition, from, to, id)
	}

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.State != from {
		return nil, fmt.Errorf("%w: txn %s is %s, expected %s", ErrStateConflict, id, tx.State, from)
	}

	now := time.Now()
	tx.State = to
	if mutate != nil {
		mutate(tx)
	}
	tx.Timeline = append(tx.Timeline, TimelineEntry{State: to, At: now, Note: note})
	tx.UpdatedAt = now

	if err := s.store.CompareAndUpdate(ctx, tx, from); err != nil {
		return nil, err
	}
	TransitionsTotal.WithLabelValues(string(to)).Inc()
	return tx, nil
}

// Annotate edits non-state fields under the same CAS commit used by
// Transition, without changing state or appending a timeline entry.
func (s *Service) Annotate(ctx context.Context, id string, mutate func(*Transaction)) (*Transaction, error) {
	done := observeOp("annotate")
	defer done()

	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		tx, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		from := tx.State
		mutate(tx)
		tx.State = from // state never changes through Annotate
		tx.UpdatedAt = time.Now()

		err = s.store.CompareAndUpdate(ctx, tx, from)
		if errors.Is(err, ErrStateConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
	return nil, lastErr
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListByUser returns transactions where the user is buyer or seller,
// newest first. cursor is an opaque position from a previous page; the
// returned cursor fetches the next page when hasMore is true.
func (s *Service) ListByUser(ctx context.Context, userID, cursor string, limit int) ([]*Transaction, string, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	// Fetch one extra row to learn whether a next page exists.
	txns, err := s.store.ListByUser(ctx, userID, before, limit+1)
	if err != nil {
		return nil, "", false, err
	}

	txns, next, hasMore := pagination.ComputePage(txns, limit, func(t *Transaction) (time.Time, string) {
		return t.CreatedAt, t.ID
	})
	return txns, next, hasMore, nil
}

// ListReleasable returns escrowed transactions whose release time passed.
func (s *Service) ListReleasable(ctx context.Context, before time.Time, limit int) ([]*Transaction, error) {
	return s.store.ListReleasable(ctx, before, limit)
}
