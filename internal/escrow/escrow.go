// Package escrow orchestrates the purchase flow end to end.
//
// The buyer initiates a purchase, pays through the gateway checkout,
// and the verified payment is held in escrow until the hold period
// passes (or the seller releases early, or a dispute is resolved).
// State lives in the ledger; this package coordinates the gateway,
// the listing service and notifications around each transition.
//
// Ordering rule: gateway money movement happens before the ledger
// transition. If the transition then loses its CAS race, the money and
// the ledger disagree and a reconciliation event is raised instead of
// attempting an automatic rollback.
//
// Locking rule: the per-transaction lock is held only around the ledger
// commit of a single transition, never across a gateway call. A slow
// gateway must not block other operations on the same transaction.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bechdo/bechdo/internal/fees"
	"github.com/bechdo/bechdo/internal/ledger"
	"github.com/bechdo/bechdo/internal/metrics"
	"github.com/bechdo/bechdo/internal/payments"
	"github.com/bechdo/bechdo/internal/retry"
	"github.com/bechdo/bechdo/internal/syncutil"
	"github.com/bechdo/bechdo/internal/traces"
)

var (
	ErrListingUnavailable        = errors.New("escrow: listing is not available for purchase")
	ErrSelfPurchase              = errors.New("escrow: buyer and seller are the same user")
	ErrUnknownGateway            = errors.New("escrow: no gateway configured for provider")
	ErrPaymentVerificationFailed = errors.New("escrow: payment verification failed")
	ErrUnauthorized              = errors.New("escrow: caller is not a party to this transaction")
)

// DefaultHoldPeriodDays is how long funds stay in escrow before
// auto-release when the purchase does not override it.
const DefaultHoldPeriodDays = 7

const (
	gatewayAttempts  = 3
	gatewayBaseDelay = 500 * time.Millisecond
)

// Listing is the subset of a marketplace listing this package needs.
type Listing struct {
	ID       string `json:"id"`
	SellerID string `json:"sellerId"`
	Price    int64  `json:"price"`
	Status   string `json:"status"`
}

// ListingService mediates listing state changes during a purchase.
type ListingService interface {
	Get(ctx context.Context, id string) (*Listing, error)
	Reserve(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// SellerStats records completed sales against the seller's profile.
type SellerStats interface {
	RecordSale(ctx context.Context, sellerID string, amount int64) error
}

// Notifier delivers user-facing transaction events. Failures are logged
// and never roll back a committed transition.
type Notifier interface {
	Notify(ctx context.Context, userID, event, message string) error
}

// Service coordinates purchases across the ledger, payment gateways and
// the listing service.
type Service struct {
	ledger   *ledger.Service
	gateways map[payments.Provider]payments.Gateway
	listings ListingService
	stats    SellerStats
	notifier Notifier
	locks    syncutil.ShardedMutex
	logger   *slog.Logger

	holdPeriodDays int
}

// NewService creates an escrow service. holdPeriodDays <= 0 falls back
// to DefaultHoldPeriodDays.
func NewService(
	led *ledger.Service,
	gateways map[payments.Provider]payments.Gateway,
	listings ListingService,
	stats SellerStats,
	notifier Notifier,
	holdPeriodDays int,
	logger *slog.Logger,
) *Service {
	if holdPeriodDays <= 0 {
		holdPeriodDays = DefaultHoldPeriodDays
	}
	return &Service{
		ledger:         led,
		gateways:       gateways,
		listings:       listings,
		stats:          stats,
		notifier:       notifier,
		holdPeriodDays: holdPeriodDays,
		logger:         logger,
	}
}

func (s *Service) gateway(p payments.Provider) (payments.Gateway, error) {
	gw, ok := s.gateways[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, p)
	}
	return gw, nil
}

// gatewayCall runs fn against the provider with bounded retries and
// records the outcome.
func (s *Service) gatewayCall(ctx context.Context, provider payments.Provider, op string, fn func() error) error {
	err := retry.Do(ctx, gatewayAttempts, gatewayBaseDelay, fn)
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.GatewayRequestsTotal.WithLabelValues(string(provider), op, result).Inc()
	return err
}

// InitiateRequest starts a purchase.
type InitiateRequest struct {
	BuyerID       string             `json:"buyerId" binding:"required"`
	ListingID     string             `json:"listingId" binding:"required"`
	FinalPrice    int64              `json:"finalPrice" binding:"required"`
	Gateway       payments.Provider  `json:"gateway"`
	PaymentMethod fees.PaymentMethod `json:"paymentMethod"`
}

// InitiatePurchase validates the listing, records a pending transaction
// and opens a gateway order for the buyer's checkout. The listing price
// at initiation time is captured as the original price; the negotiated
// final price is what gets charged (plus fees).
func (s *Service) InitiatePurchase(ctx context.Context, req InitiateRequest) (*ledger.Transaction, *payments.Order, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.initiate",
		traces.ListingID(req.ListingID),
		traces.Amount(req.FinalPrice),
	)
	defer span.End()

	done := observeOp("initiate")
	defer done()

	if req.Gateway == "" {
		req.Gateway = payments.ProviderRazorpay
	}
	gw, err := s.gateway(req.Gateway)
	if err != nil {
		return nil, nil, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = fees.MethodUPI
	}

	listing, err := s.listings.Get(ctx, req.ListingID)
	if err != nil {
		return nil, nil, fmt.Errorf("escrow: fetch listing: %w", err)
	}
	if listing.Status != "active" {
		return nil, nil, fmt.Errorf("%w: listing %s is %s", ErrListingUnavailable, listing.ID, listing.Status)
	}
	if listing.SellerID == req.BuyerID {
		return nil, nil, ErrSelfPurchase
	}

	breakdown, err := fees.Compute(req.FinalPrice, req.PaymentMethod)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.ledger.Create(ctx, ledger.CreateParams{
		BuyerID:        req.BuyerID,
		SellerID:       listing.SellerID,
		ListingID:      listing.ID,
		OriginalPrice:  listing.Price,
		FinalPrice:     req.FinalPrice,
		Currency:       "INR",
		Fees:           breakdown,
		Gateway:        req.Gateway,
		HoldPeriodDays: s.holdPeriodDays,
	})
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(traces.TxnID(tx.ID))

	var order *payments.Order
	err = s.gatewayCall(ctx, tx.Gateway, "create_order", func() error {
		var oerr error
		order, oerr = gw.CreateOrder(ctx, tx.ChargeAmount(), tx.Currency, tx.ID, map[string]string{
			"transactionId": tx.ID,
			"listingId":     tx.ListingID,
		})
		return oerr
	})
	if err != nil {
		if _, ferr := s.ledger.Transition(ctx, tx.ID, ledger.StateFailed, "gateway order creation failed", nil); ferr != nil {
			s.logger.Warn("could not fail transaction after order error", "txnId", tx.ID, "error", ferr)
		}
		return nil, nil, fmt.Errorf("escrow: create gateway order: %w", err)
	}

	tx, err = s.ledger.Annotate(ctx, tx.ID, func(t *ledger.Transaction) {
		t.OrderID = order.ID
		t.PaymentMethod = req.PaymentMethod
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("purchase initiated",
		"txnId", tx.ID, "listingId", tx.ListingID,
		"buyer", tx.BuyerID, "seller", tx.SellerID,
		"amount", tx.FinalPrice, "charge", tx.ChargeAmount(),
		"gateway", tx.Gateway, "orderId", order.ID,
	)
	return tx, order, nil
}

// VerifyRequest carries the gateway checkout proof back from the client.
type VerifyRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	OrderID       string `json:"orderId" binding:"required"`
	PaymentID     string `json:"paymentId" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// VerifyAndEscrow checks the gateway signature on a completed checkout
// and moves the funds into escrow. Idempotent: replaying the same proof
// against a transaction that already verified returns the transaction
// unchanged. A bad signature fails the transaction permanently.
func (s *Service) VerifyAndEscrow(ctx context.Context, req VerifyRequest) (*ledger.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.verify", traces.TxnID(req.TransactionID))
	defer span.End()

	done := observeOp("verify")
	defer done()

	tx, err := s.ledger.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	// Replay of a proof that already won.
	switch tx.State {
	case ledger.StateHeldInEscrow, ledger.StateCompleted, ledger.StateDisputed, ledger.StateRefunded:
		if tx.PaymentID == req.PaymentID {
			return tx, nil
		}
		return nil, fmt.Errorf("%w: %s already holds payment %s", ledger.ErrInvalidStateTransition, tx.ID, tx.PaymentID)
	case ledger.StatePending:
		// fall through to verification
	default:
		return nil, fmt.Errorf("%w: cannot verify %s transaction", ledger.ErrInvalidStateTransition, tx.State)
	}

	if tx.OrderID != req.OrderID {
		return nil, fmt.Errorf("%w: order mismatch", ErrPaymentVerificationFailed)
	}

	gw, err := s.gateway(tx.Gateway)
	if err != nil {
		return nil, err
	}

	if !gw.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		if _, ferr := s.ledger.Transition(ctx, tx.ID, ledger.StateFailed, "signature verification failed", nil); ferr != nil {
			s.logger.Warn("could not fail transaction after bad signature", "txnId", tx.ID, "error", ferr)
		}
		s.logger.Warn("payment signature rejected", "txnId", tx.ID, "orderId", req.OrderID, "paymentId", req.PaymentID)
		return nil, ErrPaymentVerificationFailed
	}

	// Best effort: payment method and masked instrument for receipts.
	var record *payments.PaymentRecord
	_ = s.gatewayCall(ctx, tx.Gateway, "fetch_payment", func() error {
		var perr error
		record, perr = gw.FetchPayment(ctx, req.PaymentID)
		return perr
	})

	releaseAt := time.Now().Add(time.Duration(tx.HoldPeriodDays) * 24 * time.Hour)
	unlock := s.locks.Lock(tx.ID)
	tx, err = s.ledger.TransitionFrom(ctx, tx.ID, ledger.StatePending, ledger.StateHeldInEscrow, "payment verified, funds held in escrow", func(t *ledger.Transaction) {
		t.PaymentID = req.PaymentID
		t.ReleaseAt = &releaseAt
		if record != nil {
			t.PaymentMethod = record.Method
			t.PaymentInstrument = record.Instrument
		}
	})
	unlock()
	if err != nil {
		// A concurrent replay of the same proof may have won the race.
		if cur, gerr := s.ledger.Get(ctx, req.TransactionID); gerr == nil && cur.PaymentID == req.PaymentID {
			switch cur.State {
			case ledger.StateHeldInEscrow, ledger.StateCompleted, ledger.StateDisputed, ledger.StateRefunded:
				return cur, nil
			}
		}
		return nil, err
	}

	if rerr := s.listings.Reserve(ctx, tx.ListingID); rerr != nil {
		// Money already moved; reservation drift is a reconciliation
		// problem, not grounds for unwinding the payment.
		s.reconciliationNeeded(ctx, tx.ID, "reserve_listing", rerr)
	}

	s.notify(ctx, tx.BuyerID, "payment_escrowed", fmt.Sprintf("Payment for %s is held in escrow until %s", tx.ListingID, releaseAt.Format(time.RFC3339)))
	s.notify(ctx, tx.SellerID, "item_sold_pending", fmt.Sprintf("Your listing %s sold, funds release on %s", tx.ListingID, releaseAt.Format(time.RFC3339)))

	s.logger.Info("payment escrowed",
		"txnId", tx.ID, "paymentId", req.PaymentID,
		"releaseAt", releaseAt, "method", tx.PaymentMethod,
	)
	return tx, nil
}

// ReleaseEscrow completes the purchase: captures any un-captured charge,
// marks the transaction completed and hands the listing and seller stats
// their updates. releasedBy is empty for the scheduler's auto-release.
func (s *Service) ReleaseEscrow(ctx context.Context, id, releasedBy string) (*ledger.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.release", traces.TxnID(id))
	defer span.End()

	done := observeOp("release")
	defer done()

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.State != ledger.StateHeldInEscrow {
		return nil, fmt.Errorf("%w: %s → completed", ledger.ErrInvalidStateTransition, tx.State)
	}
	if releasedBy != "" && releasedBy != tx.SellerID && releasedBy != tx.BuyerID {
		return nil, ErrUnauthorized
	}

	gw, err := s.gateway(tx.Gateway)
	if err != nil {
		return nil, err
	}
	if err := s.gatewayCall(ctx, tx.Gateway, "capture", func() error {
		return gw.Capture(ctx, tx.PaymentID, tx.ChargeAmount())
	}); err != nil {
		return nil, fmt.Errorf("escrow: capture: %w", err)
	}

	unlock := s.locks.Lock(id)
	tx, err = s.ledger.TransitionFrom(ctx, id, ledger.StateHeldInEscrow, ledger.StateCompleted, releaseNote(releasedBy), func(t *ledger.Transaction) {
		t.Released = true
		t.ReleasedBy = releasedBy
	})
	unlock()
	if err != nil {
		// Funds were captured but the ledger moved under us.
		s.reconciliationNeeded(ctx, id, "release_transition", err)
		return nil, err
	}

	s.settle(ctx, tx)

	s.logger.Info("escrow released",
		"txnId", tx.ID, "seller", tx.SellerID,
		"amount", tx.FinalPrice, "releasedBy", releasedBy,
	)
	return tx, nil
}

func releaseNote(releasedBy string) string {
	if releasedBy == "" {
		return "hold period elapsed, funds auto-released to seller"
	}
	return "funds released to seller"
}

// settle applies the post-completion side effects shared by release and
// dispute resolution. None of them roll back the completed transition.
func (s *Service) settle(ctx context.Context, tx *ledger.Transaction) {
	if err := s.listings.MarkSold(ctx, tx.ListingID); err != nil {
		s.reconciliationNeeded(ctx, tx.ID, "mark_sold", err)
	}
	payout := tx.FinalPrice - tx.Fees.PlatformFee
	if err := s.stats.RecordSale(ctx, tx.SellerID, payout); err != nil {
		s.logger.Warn("failed to record sale", "txnId", tx.ID, "seller", tx.SellerID, "error", err)
	}
	s.notify(ctx, tx.SellerID, "funds_released", fmt.Sprintf("Funds for %s released to you", tx.ListingID))
	s.notify(ctx, tx.BuyerID, "purchase_completed", fmt.Sprintf("Your purchase of %s is complete", tx.ListingID))
}

// RefundRequest asks for some or all of the charge back. Amount is in
// minor units; zero means the full charge (price plus fees).
type RefundRequest struct {
	RequestedBy string `json:"requestedBy" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Amount      int64  `json:"amount"`
}

// ProcessRefund returns the requested amount (by default the full
// charge, price plus fees) to the buyer. Legal from held_in_escrow and,
// for post-release goodwill refunds, from completed. Disputed
// transactions refund through ResolveDispute.
func (s *Service) ProcessRefund(ctx context.Context, id string, req RefundRequest) (*ledger.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.refund", traces.TxnID(id))
	defer span.End()

	done := observeOp("refund")
	defer done()

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.State != ledger.StateHeldInEscrow && tx.State != ledger.StateCompleted {
		return nil, fmt.Errorf("%w: %s → refunded", ledger.ErrInvalidStateTransition, tx.State)
	}

	amount := req.Amount
	if amount == 0 {
		amount = tx.ChargeAmount()
	}
	if amount < 0 || amount > tx.ChargeAmount() {
		return nil, fmt.Errorf("%w: refund of %d against a charge of %d", ledger.ErrInvalidAmount, req.Amount, tx.ChargeAmount())
	}

	fromEscrow := tx.State == ledger.StateHeldInEscrow
	tx, err = s.refund(ctx, tx, amount, req.RequestedBy, req.Reason)
	if err != nil {
		return nil, err
	}

	if fromEscrow {
		if rerr := s.listings.Release(ctx, tx.ListingID); rerr != nil {
			s.reconciliationNeeded(ctx, tx.ID, "release_listing", rerr)
		}
	}

	s.notify(ctx, tx.BuyerID, "refund_processed", fmt.Sprintf("Your payment for %s was refunded", tx.ListingID))
	s.notify(ctx, tx.SellerID, "purchase_refunded", fmt.Sprintf("The purchase of %s was refunded to the buyer", tx.ListingID))
	return tx, nil
}

// refund moves money at the gateway and then commits the transition,
// conditional on the state the caller observed still holding.
func (s *Service) refund(ctx context.Context, tx *ledger.Transaction, amount int64, requestedBy, reason string) (*ledger.Transaction, error) {
	gw, err := s.gateway(tx.Gateway)
	if err != nil {
		return nil, err
	}
	from := tx.State

	var refundID string
	err = s.gatewayCall(ctx, tx.Gateway, "refund", func() error {
		var rerr error
		refundID, rerr = gw.Refund(ctx, tx.PaymentID, amount, map[string]string{
			"transactionId": tx.ID,
			"reason":        reason,
		})
		if errors.Is(rerr, payments.ErrRefundFailed) {
			return retry.Permanent(rerr)
		}
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("escrow: gateway refund: %w", err)
	}

	now := time.Now()
	unlock := s.locks.Lock(tx.ID)
	tx, err = s.ledger.TransitionFrom(ctx, tx.ID, from, ledger.StateRefunded, "refund issued: "+reason, func(t *ledger.Transaction) {
		t.RefundID = refundID
		t.RefundAmount = amount
		t.RefundReason = reason
		t.RefundedBy = requestedBy
		t.RefundedAt = &now
	})
	unlock()
	if err != nil {
		// Refund went out but the ledger moved under us.
		s.reconciliationNeeded(ctx, tx.ID, "refund_transition", err)
		return nil, err
	}

	s.logger.Info("refund processed",
		"txnId", tx.ID, "refundId", refundID,
		"amount", amount, "requestedBy", requestedBy,
	)
	return tx, nil
}

// DisputeRequest opens a dispute on an escrowed transaction.
type DisputeRequest struct {
	RaisedBy string `json:"raisedBy" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// RaiseDispute freezes an escrowed transaction. A disputed transaction
// is excluded from auto-release until resolved.
func (s *Service) RaiseDispute(ctx context.Context, id string, req DisputeRequest) (*ledger.Transaction, error) {
	done := observeOp("dispute")
	defer done()

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RaisedBy != tx.BuyerID && req.RaisedBy != tx.SellerID {
		return nil, ErrUnauthorized
	}

	tx, err = s.ledger.Transition(ctx, id, ledger.StateDisputed, "dispute raised: "+req.Reason, func(t *ledger.Transaction) {
		t.DisputeReason = req.Reason
		t.DisputedBy = req.RaisedBy
	})
	if err != nil {
		return nil, err
	}

	other := tx.SellerID
	if req.RaisedBy == tx.SellerID {
		other = tx.BuyerID
	}
	s.notify(ctx, other, "dispute_raised", fmt.Sprintf("A dispute was raised on the purchase of %s", tx.ListingID))

	s.logger.Info("dispute raised", "txnId", tx.ID, "raisedBy", req.RaisedBy, "reason", req.Reason)
	return tx, nil
}

// ResolveRequest settles a dispute either way.
type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required"` // "release" or "refund"
	ResolvedBy string `json:"resolvedBy" binding:"required"`
	Note       string `json:"note"`
}

// ResolveDispute ends a dispute by releasing the funds to the seller or
// refunding the buyer.
func (s *Service) ResolveDispute(ctx context.Context, id string, req ResolveRequest) (*ledger.Transaction, error) {
	done := observeOp("resolve_dispute")
	defer done()

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.State != ledger.StateDisputed {
		return nil, fmt.Errorf("%w: transaction is %s, not disputed", ledger.ErrInvalidStateTransition, tx.State)
	}

	switch req.Resolution {
	case "release":
		gw, err := s.gateway(tx.Gateway)
		if err != nil {
			return nil, err
		}
		if err := s.gatewayCall(ctx, tx.Gateway, "capture", func() error {
			return gw.Capture(ctx, tx.PaymentID, tx.ChargeAmount())
		}); err != nil {
			return nil, fmt.Errorf("escrow: capture: %w", err)
		}
		unlock := s.locks.Lock(id)
		tx, err = s.ledger.TransitionFrom(ctx, id, ledger.StateDisputed, ledger.StateCompleted, "dispute resolved in seller's favour: "+req.Note, func(t *ledger.Transaction) {
			t.Released = true
			t.ReleasedBy = req.ResolvedBy
		})
		unlock()
		if err != nil {
			s.reconciliationNeeded(ctx, id, "resolve_release", err)
			return nil, err
		}
		s.settle(ctx, tx)
	case "refund":
		tx, err = s.refund(ctx, tx, tx.ChargeAmount(), req.ResolvedBy, "dispute resolved in buyer's favour: "+req.Note)
		if err != nil {
			return nil, err
		}
		if rerr := s.listings.Release(ctx, tx.ListingID); rerr != nil {
			s.reconciliationNeeded(ctx, tx.ID, "release_listing", rerr)
		}
		s.notify(ctx, tx.BuyerID, "refund_processed", fmt.Sprintf("Your payment for %s was refunded", tx.ListingID))
	default:
		return nil, fmt.Errorf("escrow: unknown resolution %q (want release or refund)", req.Resolution)
	}

	s.logger.Info("dispute resolved", "txnId", tx.ID, "resolution", req.Resolution, "resolvedBy", req.ResolvedBy)
	return tx, nil
}

// CancelPurchase voids a pending purchase before any money moved.
func (s *Service) CancelPurchase(ctx context.Context, id, cancelledBy string) (*ledger.Transaction, error) {
	done := observeOp("cancel")
	defer done()

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cancelledBy != tx.BuyerID && cancelledBy != tx.SellerID {
		return nil, ErrUnauthorized
	}

	return s.ledger.Transition(ctx, id, ledger.StateCancelled, "purchase cancelled before payment", nil)
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Transaction, error) {
	return s.ledger.Get(ctx, id)
}

// ListByUser returns a page of a user's transactions, newest first,
// plus an opaque cursor for the next page.
func (s *Service) ListByUser(ctx context.Context, userID, cursor string, limit int) ([]*ledger.Transaction, string, bool, error) {
	return s.ledger.ListByUser(ctx, userID, cursor, limit)
}

// reconciliationNeeded records a money/ledger divergence for the ops
// team. Loud on purpose: these are the only errors that need a human.
func (s *Service) reconciliationNeeded(ctx context.Context, txnID, op string, err error) {
	ReconciliationEventsTotal.WithLabelValues(op).Inc()
	s.logger.Error("RECONCILIATION NEEDED: ledger and side effects diverged",
		"txnId", txnID, "op", op, "error", err,
	)
	s.notify(ctx, "ops", "reconciliation_needed", fmt.Sprintf("transaction %s: %s failed: %v", txnID, op, err))
}

func (s *Service) notify(ctx context.Context, userID, event, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, event, message); err != nil {
		s.logger.Warn("notification failed", "userId", userID, "event", event, "error", err)
	}
}
