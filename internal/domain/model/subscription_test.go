// File: internal/domain/model/subscription_test.go
package model

import (
	"errors"
	"testing"
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain"
)

func TestNewSubscription_Validation(t *testing.T) {
	if _, err := NewSubscription("", "u", nil, PlanTypeBusiness, 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty id: %v", err)
	}
	if _, err := NewSubscription("s", "", nil, PlanTypeBusiness, 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty user: %v", err)
	}
	if _, err := NewSubscription("s", "u", nil, PlanTypeBusiness, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero months: %v", err)
	}
}

func TestSubscriptionIsActive(t *testing.T) {
	sub, _ := NewSubscription("s", "u", nil, PlanTypeBusiness, 1)
	if sub.IsActive() {
		t.Fatal("pending subscription reported active")
	}

	sub.Status = SubscriptionStatusActive
	if sub.IsActive() {
		t.Fatal("active without expiry reported active")
	}

	past := time.Now().Add(-time.Hour)
	sub.ExpiresAt = &past
	if sub.IsActive() {
		t.Fatal("expired-in-the-past reported active")
	}

	future := time.Now().Add(time.Hour)
	sub.ExpiresAt = &future
	if !sub.IsActive() {
		t.Fatal("active with future expiry reported inactive")
	}
}

func TestActivate(t *testing.T) {
	sub, _ := NewSubscription("s", "u", nil, PlanTypeBusiness, 3)
	before := time.Now()
	sub.Activate(0) // keep stored duration
	if !sub.IsActive() {
		t.Fatal("not active after Activate")
	}
	if sub.StartsAt == nil || sub.StartsAt.Before(before.Add(-time.Second)) {
		t.Fatalf("starts at = %v", sub.StartsAt)
	}
	wantExpiry := sub.StartsAt.AddDate(0, 3, 0)
	if !sub.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires at = %v, want %v", sub.ExpiresAt, wantExpiry)
	}

	// explicit duration overrides the stored one
	sub2, _ := NewSubscription("s2", "u", nil, PlanTypeBusiness, 1)
	sub2.Activate(6)
	if sub2.DurationMonths != 6 {
		t.Fatalf("duration = %d, want 6", sub2.DurationMonths)
	}
}

func TestExtend(t *testing.T) {
	t.Run("unexpired extends from current expiry", func(t *testing.T) {
		sub, _ := NewSubscription("s", "u", nil, PlanTypeBusiness, 1)
		sub.Activate(1)
		oldExpiry := *sub.ExpiresAt
		sub.Extend(2)
		want := oldExpiry.AddDate(0, 2, 0)
		if !sub.ExpiresAt.Equal(want) {
			t.Fatalf("expires at = %v, want %v", sub.ExpiresAt, want)
		}
	})

	t.Run("lapsed restarts from now", func(t *testing.T) {
		sub, _ := NewSubscription("s", "u", nil, PlanTypeBusiness, 1)
		past := time.Now().Add(-time.Hour)
		sub.Status = SubscriptionStatusExpired
		sub.ExpiresAt = &past
		before := time.Now()
		sub.Extend(1)
		if sub.Status != SubscriptionStatusActive {
			t.Fatalf("status = %s, want active", sub.Status)
		}
		if sub.ExpiresAt.Before(before.AddDate(0, 1, 0).Add(-time.Minute)) {
			t.Fatalf("expiry not restarted from now: %v", sub.ExpiresAt)
		}
	})
}
