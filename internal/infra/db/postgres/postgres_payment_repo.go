package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

var _ repository.PaymentTransactionRepository = (*paymentRepo)(nil)

const paymentColumns = `id, user_id, vendor_id, purpose, gateway, amount_irr, order_id, track_id, status, result_code, message, paid_at, card_pan_masked, ref_number, meta, callback_url, created_at, updated_at`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	const q = `
INSERT INTO billing_payment_transactions (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  track_id=$8, status=$9, result_code=$10, message=$11, paid_at=$12,
  card_pan_masked=$13, ref_number=$14, meta=$15, callback_url=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.VendorID, t.Purpose, t.Gateway, t.AmountIRR, t.OrderID, t.TrackID,
		t.Status, t.ResultCode, t.Message, t.PaidAt, t.CardPANMasked, t.RefNumber, t.Meta,
		t.CallbackURL, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// order_id or (gateway, track_id) collided with another row
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM billing_payment_transactions WHERE id=$1`
	return r.findOne(ctx, tx, q, id)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM billing_payment_transactions WHERE order_id=$1`
	return r.findOne(ctx, tx, q, orderID)
}

func (r *paymentRepo) FindByTrackID(ctx context.Context, tx repository.Tx, gateway model.PaymentGateway, trackID int64) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM billing_payment_transactions WHERE gateway=$1 AND track_id=$2`
	return r.findOne(ctx, tx, q, gateway, trackID)
}

// findOne appends FOR UPDATE when running inside a transaction so the
// check-then-transition sequence holds an exclusive row lock.
func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PaymentTransaction, error) {
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	t := &model.PaymentTransaction{}
	if err := scanPayment(row, t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *paymentRepo) ListReconcilable(ctx context.Context, tx repository.Tx, f repository.ReconcileFilter) ([]*model.PaymentTransaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if f.TrackID != nil {
		const q = `SELECT ` + paymentColumns + ` FROM billing_payment_transactions
 WHERE gateway=$1 AND track_id=$2;`
		rows, err = queryRows(ctx, r.pool, tx, q, f.Gateway, *f.TrackID)
	} else {
		const q = `SELECT ` + paymentColumns + ` FROM billing_payment_transactions
 WHERE gateway=$1 AND status IN ('initiated','pending') AND track_id IS NOT NULL AND created_at >= $2
 ORDER BY created_at ASC LIMIT $3;`
		rows, err = queryRows(ctx, r.pool, tx, q, f.Gateway, f.CreatedAfter, limit)
	}
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t := new(model.PaymentTransaction)
		if err := scanPayment(rows, t); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

func scanPayment(row pgx.Row, t *model.PaymentTransaction) error {
	return row.Scan(
		&t.ID, &t.UserID, &t.VendorID, &t.Purpose, &t.Gateway, &t.AmountIRR, &t.OrderID, &t.TrackID,
		&t.Status, &t.ResultCode, &t.Message, &t.PaidAt, &t.CardPANMasked, &t.RefNumber, &t.Meta,
		&t.CallbackURL, &t.CreatedAt, &t.UpdatedAt,
	)
}
