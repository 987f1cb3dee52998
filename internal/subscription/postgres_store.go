package subscription

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subColumns = `id, user_id, plan, status, start_date, end_date,
		       listings_used, ads_used, last_reset_at, upgraded, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan, status, start_date, end_date,
			listings_used, ads_used, last_reset_at, upgraded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.UserID, string(s.Plan), string(s.Status), s.StartDate, s.EndDate,
		s.ListingsUsed, s.AdsUsed, s.LastResetAt, s.Upgraded, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Subscription, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id = $1`, id)

	s, err := scanSub(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	return s, err
}

func (p *PostgresStore) GetActiveByUser(ctx context.Context, userID string) (*Subscription, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+subColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`, userID)

	s, err := scanSub(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	return s, err
}

func (p *PostgresStore) Update(ctx context.Context, s *Subscription) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			plan = $1, status = $2, start_date = $3, end_date = $4,
			listings_used = $5, ads_used = $6, last_reset_at = $7, upgraded = $8, updated_at = $9
		WHERE id = $10`,
		string(s.Plan), string(s.Status), s.StartDate, s.EndDate,
		s.ListingsUsed, s.AdsUsed, s.LastResetAt, s.Upgraded, s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ConsumeUsage increments a usage counter only while it is below the
// limit. The guard lives inside the single UPDATE, so two concurrent
// callers at the boundary cannot both pass.
func (p *PostgresStore) ConsumeUsage(ctx context.Context, id string, kind UsageKind, limit int) error {
	column := "listings_used"
	if kind == UsageAds {
		column = "ads_used"
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET `+column+` = `+column+` + 1, updated_at = NOW()
		WHERE id = $1 AND ($2 <= 0 OR `+column+` < $2)`,
		id, limit,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var used int
		err := p.db.QueryRowContext(ctx,
			`SELECT `+column+` FROM subscriptions WHERE id = $1`, id).Scan(&used)
		if err == sql.ErrNoRows {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		return &QuotaError{Kind: kind, Used: used, Limit: limit}
	}
	return nil
}

// ResetUsageIfDue zeroes the counters only when the stored last_reset_at
// is at or before cutoff, so concurrent lazy resets apply once.
func (p *PostgresStore) ResetUsageIfDue(ctx context.Context, id string, cutoff, now time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET listings_used = 0, ads_used = 0, last_reset_at = $1, updated_at = $1
		WHERE id = $2 AND last_reset_at <= $3`,
		now, id, cutoff,
	)
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSub(sc scanner) (*Subscription, error) {
	s := &Subscription{}
	var plan, status string

	err := sc.Scan(
		&s.ID, &s.UserID, &plan, &status, &s.StartDate, &s.EndDate,
		&s.ListingsUsed, &s.AdsUsed, &s.LastResetAt, &s.Upgraded, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Plan = Plan(plan)
	s.Status = Status(status)
	return s, nil
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
