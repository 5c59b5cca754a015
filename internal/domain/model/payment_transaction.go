package model

import (
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated" // ledger row created, gateway not contacted yet
	PaymentStatusPending   PaymentStatus = "pending"   // gateway accepted the request; awaiting verification
	PaymentStatusPaid      PaymentStatus = "paid"      // verified OK at provider
	PaymentStatusFailed    PaymentStatus = "failed"    // verification failed, cancelled, or gateway error
	PaymentStatusExpired   PaymentStatus = "expired"   // stuck pending past the staleness window
	PaymentStatusRefunded  PaymentStatus = "refunded"  // reserved; no transition path implemented
)

type PaymentPurpose string

const (
	PurposeSubscription       PaymentPurpose = "subscription"
	PurposeAppointmentDeposit PaymentPurpose = "appointment_deposit"
	PurposeDeliveryFee        PaymentPurpose = "delivery_fee"
)

type PaymentGateway string

const (
	GatewayZibal PaymentGateway = "zibal"
)

// PaymentTransaction records one attempt to collect a payment through a gateway.
// OrderID is caller-generated and globally unique (idempotency on the initiating
// side); TrackID is gateway-assigned and unique per gateway once set.
type PaymentTransaction struct {
	ID            string // UUID
	UserID        string // UUID
	VendorID      *string
	Purpose       PaymentPurpose
	Gateway       PaymentGateway
	AmountIRR     int64 // smallest currency unit (Rials)
	OrderID       string
	TrackID       *int64
	Status        PaymentStatus
	ResultCode    *int
	Message       string
	PaidAt        *time.Time
	CardPANMasked string
	RefNumber     string
	Meta          map[string]interface{} // carries subscription_id, months, plan_type, verify data
	CallbackURL   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPaymentTransaction creates a ledger row in initiated status, before any
// gateway round-trip.
func NewPaymentTransaction(id, userID, orderID string, purpose PaymentPurpose, gateway PaymentGateway, amountIRR int64) (*PaymentTransaction, error) {
	if id == "" || userID == "" || orderID == "" || amountIRR <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentTransaction{
		ID:        id,
		UserID:    userID,
		Purpose:   purpose,
		Gateway:   gateway,
		AmountIRR: amountIRR,
		OrderID:   orderID,
		Status:    PaymentStatusInitiated,
		Meta:      map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsTerminal reports whether the status admits no further transitions.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

func (t *PaymentTransaction) IsPending() bool {
	return t.Status == PaymentStatusInitiated || t.Status == PaymentStatusPending
}

// MarkPending records gateway acceptance: initiated -> pending with a track id.
func (t *PaymentTransaction) MarkPending(trackID int64) error {
	if t.Status != PaymentStatusInitiated {
		return domain.ErrTerminalStatus
	}
	t.TrackID = &trackID
	t.Status = PaymentStatusPending
	t.UpdatedAt = time.Now()
	return nil
}

// MarkPaid applies the pending -> paid transition. Calling it on an already
// paid transaction is an idempotent no-op: it returns changed=false and no
// error, so callers skip dependent-entity activation. Any other terminal
// status is rejected.
func (t *PaymentTransaction) MarkPaid(resultCode int, refNumber, cardPAN string) (changed bool, err error) {
	if t.Status == PaymentStatusPaid {
		return false, nil
	}
	if !t.IsPending() {
		return false, domain.ErrTerminalStatus
	}
	now := time.Now()
	t.Status = PaymentStatusPaid
	t.PaidAt = &now
	t.ResultCode = &resultCode
	t.RefNumber = refNumber
	t.CardPANMasked = cardPAN
	t.UpdatedAt = now
	return true, nil
}

// MarkFailed applies pending -> failed with the gateway's result code and message.
func (t *PaymentTransaction) MarkFailed(resultCode *int, message string) error {
	if !t.IsPending() {
		return domain.ErrTerminalStatus
	}
	t.Status = PaymentStatusFailed
	t.ResultCode = resultCode
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

// MarkExpired applies pending -> expired. This is a local timeout decision made
// by the reconciler, not a gateway-reported status.
func (t *PaymentTransaction) MarkExpired(message string) error {
	if !t.IsPending() {
		return domain.ErrTerminalStatus
	}
	t.Status = PaymentStatusExpired
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

// SubscriptionID extracts the linked subscription id from metadata, if any.
func (t *PaymentTransaction) SubscriptionID() (string, bool) {
	v, ok := t.Meta["subscription_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Months extracts the purchased duration from metadata; defaults to 1.
func (t *PaymentTransaction) Months() int {
	switch v := t.Meta["months"].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64: // JSONB round-trip decodes numbers as float64
		if v > 0 {
			return int(v)
		}
	}
	return 1
}
