package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ActiveSubscription returns the user's current active subscription, or
	// domain.ErrNotFound.
	ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	// FinishExpired flips overdue active subscriptions to expired and
	// returns how many rows changed.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, log: &l}
}

func (u *subscriptionUC) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return u.subs.FindActiveByUser(ctx, nil, userID)
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	n, err := u.subs.ExpireOverdue(ctx, nil, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.log.Info().Int("count", n).Msg("expired overdue subscriptions")
	}
	return n, nil
}
