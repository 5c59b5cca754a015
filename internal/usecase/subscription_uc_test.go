// File: internal/usecase/subscription_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
)

func TestFinishExpired(t *testing.T) {
	subs := newMemSubscriptionRepo()
	log := zerolog.Nop()
	uc := NewSubscriptionUseCase(subs, &log)

	overdue, _ := model.NewSubscription("sub-1", "user-1", nil, model.PlanTypeBusiness, 1)
	overdue.Activate(1)
	past := time.Now().Add(-time.Hour)
	overdue.ExpiresAt = &past

	current, _ := model.NewSubscription("sub-2", "user-2", nil, model.PlanTypeBusiness, 1)
	current.Activate(1)

	_ = subs.Save(context.Background(), nil, overdue)
	_ = subs.Save(context.Background(), nil, current)

	n, err := uc.FinishExpired(context.Background())
	if err != nil {
		t.Fatalf("FinishExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}

	got, _ := subs.FindByID(context.Background(), nil, "sub-1")
	if got.Status != model.SubscriptionStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
}

func TestActiveSubscription(t *testing.T) {
	subs := newMemSubscriptionRepo()
	log := zerolog.Nop()
	uc := NewSubscriptionUseCase(subs, &log)

	if _, err := uc.ActiveSubscription(context.Background(), "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	sub, _ := model.NewSubscription("sub-1", "user-1", nil, model.PlanTypeBusiness, 1)
	sub.Activate(1)
	_ = subs.Save(context.Background(), nil, sub)

	got, err := uc.ActiveSubscription(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ActiveSubscription: %v", err)
	}
	if got.ID != "sub-1" {
		t.Fatalf("got %s", got.ID)
	}
}
