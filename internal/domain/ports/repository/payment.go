package repository

import (
	"context"
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain/model"
)

// ReconcileFilter selects transactions for a reconciliation sweep:
// known gateway, non-terminal status, track id assigned, created within
// the lookback window.
type ReconcileFilter struct {
	Gateway      model.PaymentGateway
	CreatedAfter time.Time
	TrackID      *int64 // when set, match this single transaction only
	Limit        int
}

type PaymentTransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentTransaction, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentTransaction, error)
	// FindByTrackID locks the row FOR UPDATE when called inside a
	// transaction; this serializes callback and reconciler on the same row.
	FindByTrackID(ctx context.Context, tx Tx, gateway model.PaymentGateway, trackID int64) (*model.PaymentTransaction, error)
	ListReconcilable(ctx context.Context, tx Tx, f ReconcileFilter) ([]*model.PaymentTransaction, error)
}
