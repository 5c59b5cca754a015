package model

import (
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type PlanType string

const (
	PlanTypeBusiness PlanType = "business"
)

// Subscription is the entitlement a successful subscription-purpose payment
// activates. It is created in pending state alongside the transaction and
// mutated to active only by the verify-and-commit path.
type Subscription struct {
	ID                   string // UUID
	UserID               string // UUID
	VendorID             *string
	PlanType             PlanType
	Status               SubscriptionStatus
	AmountPaid           int64 // IRR
	DurationMonths       int
	StartsAt             *time.Time
	ExpiresAt            *time.Time
	PaymentTransactionID *string
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewSubscription creates a pending subscription awaiting payment.
func NewSubscription(id, userID string, vendorID *string, planType PlanType, months int) (*Subscription, error) {
	if id == "" || userID == "" || months <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:             id,
		UserID:         userID,
		VendorID:       vendorID,
		PlanType:       planType,
		Status:         SubscriptionStatusPending,
		DurationMonths: months,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsActive is true only when status is active and the expiry is set and in
// the future. A nil ExpiresAt is never a valid active state.
func (s *Subscription) IsActive() bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if s.ExpiresAt == nil {
		return false
	}
	return s.ExpiresAt.After(time.Now())
}

// Activate sets the subscription active, starting now and expiring
// durationMonths from now. A zero durationMonths keeps the stored duration.
func (s *Subscription) Activate(durationMonths int) {
	if durationMonths > 0 {
		s.DurationMonths = durationMonths
	}
	now := time.Now()
	expires := now.AddDate(0, s.DurationMonths, 0)
	s.Status = SubscriptionStatusActive
	s.StartsAt = &now
	s.ExpiresAt = &expires
	s.UpdatedAt = now
}

// Extend adds months onto an unexpired subscription, or restarts the clock
// from now when the expiry has passed or was never set.
func (s *Subscription) Extend(months int) {
	now := time.Now()
	if s.ExpiresAt != nil && s.ExpiresAt.After(now) {
		expires := s.ExpiresAt.AddDate(0, months, 0)
		s.ExpiresAt = &expires
	} else {
		expires := now.AddDate(0, months, 0)
		s.StartsAt = &now
		s.ExpiresAt = &expires
		s.Status = SubscriptionStatusActive
	}
	s.UpdatedAt = now
}
