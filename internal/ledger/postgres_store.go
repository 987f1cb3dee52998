package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bechdo/bechdo/internal/fees"
	"github.com/bechdo/bechdo/internal/pagination"
	"github.com/bechdo/bechdo/internal/payments"
)

// PostgresStore persists transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	timelineJSON, _ := json.Marshal(t.Timeline)
	if t.Timeline == nil {
		timelineJSON = []byte("[]")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, buyer_id, seller_id, listing_id,
			original_price, final_price, currency,
			platform_fee, gateway_fee, total_fees,
			gateway, order_id, payment_id, refund_id,
			payment_method, payment_instrument,
			state, hold_period_days, release_at, released, released_by,
			refund_amount, refund_reason, refunded_by, refunded_at,
			dispute_reason, disputed_by,
			timeline, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24, $25,
			$26, $27,
			$28, $29, $30
		)`,
		t.ID, t.BuyerID, t.SellerID, t.ListingID,
		t.OriginalPrice, t.FinalPrice, t.Currency,
		t.Fees.PlatformFee, t.Fees.GatewayFee, t.Fees.Total,
		string(t.Gateway), nullString(t.OrderID), nullString(t.PaymentID), nullString(t.RefundID),
		nullString(string(t.PaymentMethod)), nullString(t.PaymentInstrument),
		string(t.State), t.HoldPeriodDays, nullTime(t.ReleaseAt), t.Released, nullString(t.ReleasedBy),
		t.RefundAmount, nullString(t.RefundReason), nullString(t.RefundedBy), nullTime(t.RefundedAt),
		nullString(t.DisputeReason), nullString(t.DisputedBy),
		timelineJSON, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

const txnColumns = `id, buyer_id, seller_id, listing_id,
		       original_price, final_price, currency,
		       platform_fee, gateway_fee, total_fees,
		       gateway, order_id, payment_id, refund_id,
		       payment_method, payment_instrument,
		       state, hold_period_days, release_at, released, released_by,
		       refund_amount, refund_reason, refunded_by, refunded_at,
		       dispute_reason, disputed_by,
		       timeline, created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTxn(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// CompareAndUpdate writes the full mutable record conditioned on the stored
// state matching expected. Zero rows affected means either the row vanished
// (impossible: transactions are never deleted) or another worker won the
// transition race.
func (p *PostgresStore) CompareAndUpdate(ctx context.Context, t *Transaction, expected State) error {
	timelineJSON, _ := json.Marshal(t.Timeline)
	result, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET
			order_id = $1, payment_id = $2, refund_id = $3,
			payment_method = $4, payment_instrument = $5,
			state = $6, release_at = $7, released = $8, released_by = $9,
			refund_amount = $10, refund_reason = $11, refunded_by = $12, refunded_at = $13,
			dispute_reason = $14, disputed_by = $15,
			timeline = $16, updated_at = $17
		WHERE id = $18 AND state = $19`,
		nullString(t.OrderID), nullString(t.PaymentID), nullString(t.RefundID),
		nullString(string(t.PaymentMethod)), nullString(t.PaymentInstrument),
		string(t.State), nullTime(t.ReleaseAt), t.Released, nullString(t.ReleasedBy),
		t.RefundAmount, nullString(t.RefundReason), nullString(t.RefundedBy), nullTime(t.RefundedAt),
		nullString(t.DisputeReason), nullString(t.DisputedBy),
		timelineJSON, t.UpdatedAt,
		t.ID, string(expected),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTransactionNotFound
		}
		return ErrStateConflict
	}
	return nil
}

func (p *PostgresStore) ListReleasable(ctx context.Context, before time.Time, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE state = 'held_in_escrow'
		  AND release_at IS NOT NULL
		  AND release_at <= $1
		ORDER BY release_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTxns(rows)
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	var cursorAt sql.NullTime
	var cursorID sql.NullString
	if before != nil {
		cursorAt = sql.NullTime{Time: before.CreatedAt, Valid: true}
		cursorID = sql.NullString{String: before.ID, Valid: true}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE (buyer_id = $1 OR seller_id = $1)
		  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, userID, cursorAt, cursorID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTxns(rows)
}

func (p *PostgresStore) ListByState(ctx context.Context, state State, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE state = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(state), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTxns(rows)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTxn(s scanner) (*Transaction, error) {
	t := &Transaction{}
	var (
		gateway       string
		state         string
		orderID       sql.NullString
		paymentID     sql.NullString
		refundID      sql.NullString
		method        sql.NullString
		instrument    sql.NullString
		releaseAt     sql.NullTime
		releasedBy    sql.NullString
		refundReason  sql.NullString
		refundedBy    sql.NullString
		refundedAt    sql.NullTime
		disputeReason sql.NullString
		disputedBy    sql.NullString
		timelineJSON  []byte
	)

	err := s.Scan(
		&t.ID, &t.BuyerID, &t.SellerID, &t.ListingID,
		&t.OriginalPrice, &t.FinalPrice, &t.Currency,
		&t.Fees.PlatformFee, &t.Fees.GatewayFee, &t.Fees.Total,
		&gateway, &orderID, &paymentID, &refundID,
		&method, &instrument,
		&state, &t.HoldPeriodDays, &releaseAt, &t.Released, &releasedBy,
		&t.RefundAmount, &refundReason, &refundedBy, &refundedAt,
		&disputeReason, &disputedBy,
		&timelineJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Gateway = payments.Provider(gateway)
	t.State = State(state)
	t.OrderID = orderID.String
	t.PaymentID = paymentID.String
	t.RefundID = refundID.String
	t.PaymentMethod = fees.PaymentMethod(method.String)
	t.PaymentInstrument = instrument.String
	t.ReleasedBy = releasedBy.String
	t.RefundReason = refundReason.String
	t.RefundedBy = refundedBy.String
	t.DisputeReason = disputeReason.String
	t.DisputedBy = disputedBy.String
	if releaseAt.Valid {
		t.ReleaseAt = &releaseAt.Time
	}
	if refundedAt.Valid {
		t.RefundedAt = &refundedAt.Time
	}
	if len(timelineJSON) > 0 {
		_ = json.Unmarshal(timelineJSON, &t.Timeline)
	}

	return t, nil
}

func scanTxns(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
