package repository

import (
	"context"
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	// FindByID locks the row FOR UPDATE when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// ExpireOverdue marks active subscriptions whose expiry passed before
	// `now` as expired and returns the number of rows changed.
	ExpireOverdue(ctx context.Context, tx Tx, now time.Time) (int, error)
}
