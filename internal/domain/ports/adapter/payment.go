package adapter

import (
	"context"
	"time"
)

// PaymentRequest is the initiating leg of a gateway payment.
type PaymentRequest struct {
	AmountIRR   int64
	OrderID     string
	CallbackURL string
	Mobile      string // optional
	Description string // optional
}

// PaymentRequestResult mirrors the gateway's request response.
type PaymentRequestResult struct {
	TrackID    int64
	ResultCode int
	Message    string
	Success    bool
}

// VerifyResult is the only gateway answer that may be trusted to finalize a
// transaction. IsDuplicate means the provider already confirmed the payment
// in a prior verify call; that is an idempotent-success signal, not an error.
type VerifyResult struct {
	ResultCode    int
	AmountIRR     int64
	Status        int
	PaidAt        *time.Time
	PaidAtRaw     string
	RefNumber     string
	CardPANMasked string
	OrderID       string
	Message       string
	Success       bool
	IsDuplicate   bool
}

// Provider-side transaction status codes, as reported by inquiry.
const (
	GatewayStatusPaid      = 1
	GatewayStatusPending   = -1
	GatewayStatusCancelled = -2
)

// InquiryResult is a read-only status report used by reconciliation. It must
// never be used to mark a transaction paid; only VerifyPayment may do that.
type InquiryResult struct {
	ResultCode int
	Status     int
	AmountIRR  int64
	Message    string
}

func (r *InquiryResult) Paid() bool      { return r.Status == GatewayStatusPaid }
func (r *InquiryResult) Pending() bool   { return r.Status == GatewayStatusPending }
func (r *InquiryResult) Cancelled() bool { return r.Status == GatewayStatusCancelled }

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// RequestPayment initiates a payment and returns the provider track id.
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentRequestResult, error)
	// VerifyPayment finalizes a payment attempt with the provider.
	VerifyPayment(ctx context.Context, trackID int64) (*VerifyResult, error)
	// Inquiry reads the provider-side status without changing it.
	Inquiry(ctx context.Context, trackID int64) (*InquiryResult, error)
	// StartURL builds the redirect URL for a track id. Pure string work.
	StartURL(trackID int64) string
}
