package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionColumns = `id, user_id, vendor_id, plan_type, status, amount_paid, duration_months, starts_at, expires_at, payment_transaction_id, notes, created_at, updated_at`

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO billing_subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status=$5, amount_paid=$6, duration_months=$7, starts_at=$8, expires_at=$9,
  payment_transaction_id=$10, notes=$11, updated_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.VendorID, s.PlanType, s.Status, s.AmountPaid, s.DurationMonths,
		s.StartsAt, s.ExpiresAt, s.PaymentTransactionID, s.Notes, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM billing_subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	if err := scanSubscription(row, s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM billing_subscriptions
 WHERE user_id=$1 AND status='active' AND expires_at > NOW()
 ORDER BY expires_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	if err := scanSubscription(row, s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE billing_subscriptions SET status='expired', updated_at=NOW()
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func scanSubscription(row pgx.Row, s *model.Subscription) error {
	return row.Scan(
		&s.ID, &s.UserID, &s.VendorID, &s.PlanType, &s.Status, &s.AmountPaid, &s.DurationMonths,
		&s.StartsAt, &s.ExpiresAt, &s.PaymentTransactionID, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
}
