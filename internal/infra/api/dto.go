package api

import (
	"time"

	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/usecase"
)

type startDTO struct {
	OrderID        string `json:"order_id"`
	TrackID        int64  `json:"track_id"`
	RedirectURL    string `json:"redirect_url"`
	AmountIRR      int64  `json:"amount_irr"`
	AmountDisplay  string `json:"amount_display"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

func startResponse(r *usecase.StartResult) startDTO {
	return startDTO{
		OrderID:        r.OrderID,
		TrackID:        r.TrackID,
		RedirectURL:    r.RedirectURL,
		AmountIRR:      r.AmountIRR,
		AmountDisplay:  r.AmountDisplay,
		SubscriptionID: r.SubscriptionID,
	}
}

type transactionDTO struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	VendorID      *string                `json:"vendor_id,omitempty"`
	Purpose       string                 `json:"purpose"`
	Gateway       string                 `json:"gateway"`
	AmountIRR     int64                  `json:"amount_irr"`
	OrderID       string                 `json:"order_id"`
	TrackID       *int64                 `json:"track_id,omitempty"`
	Status        string                 `json:"status"`
	ResultCode    *int                   `json:"result_code,omitempty"`
	Message       string                 `json:"message,omitempty"`
	PaidAt        *time.Time             `json:"paid_at,omitempty"`
	CardPANMasked string                 `json:"card_pan_masked,omitempty"`
	RefNumber     string                 `json:"ref_number,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func transactionResponse(t *model.PaymentTransaction) transactionDTO {
	return transactionDTO{
		ID:            t.ID,
		UserID:        t.UserID,
		VendorID:      t.VendorID,
		Purpose:       string(t.Purpose),
		Gateway:       string(t.Gateway),
		AmountIRR:     t.AmountIRR,
		OrderID:       t.OrderID,
		TrackID:       t.TrackID,
		Status:        string(t.Status),
		ResultCode:    t.ResultCode,
		Message:       t.Message,
		PaidAt:        t.PaidAt,
		CardPANMasked: t.CardPANMasked,
		RefNumber:     t.RefNumber,
		Meta:          t.Meta,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

type subscriptionDTO struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	VendorID       *string    `json:"vendor_id,omitempty"`
	PlanType       string     `json:"plan_type"`
	Status         string     `json:"status"`
	AmountPaid     int64      `json:"amount_paid"`
	DurationMonths int        `json:"duration_months"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func subscriptionResponse(s *model.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:             s.ID,
		UserID:         s.UserID,
		VendorID:       s.VendorID,
		PlanType:       string(s.PlanType),
		Status:         string(s.Status),
		AmountPaid:     s.AmountPaid,
		DurationMonths: s.DurationMonths,
		StartsAt:       s.StartsAt,
		ExpiresAt:      s.ExpiresAt,
	}
}

type callbackDTO struct {
	OrderID        string     `json:"order_id"`
	Status         string     `json:"status"`
	ResultCode     *int       `json:"result_code,omitempty"`
	Message        string     `json:"message,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Purpose        string     `json:"purpose"`
	AmountIRR      int64      `json:"amount_irr"`
	Redirect       string     `json:"redirect"`
	Paid           bool       `json:"paid"`
}

func callbackResponse(o *usecase.CallbackOutcome) callbackDTO {
	return callbackDTO{
		OrderID:        o.OrderID,
		Status:         string(o.Status),
		ResultCode:     o.ResultCode,
		Message:        o.Message,
		PaidAt:         o.PaidAt,
		SubscriptionID: o.SubscriptionID,
		Purpose:        string(o.Purpose),
		AmountIRR:      o.AmountIRR,
		Redirect:       o.Redirect,
		Paid:           o.Paid(),
	}
}

type reconcileDTO struct {
	Total            int                   `json:"total"`
	Reconciled       int                   `json:"reconciled"`
	AlreadyProcessed int                   `json:"already_processed"`
	Failed           int                   `json:"failed"`
	Outcomes         []reconcileOutcomeDTO `json:"outcomes,omitempty"`
}

type reconcileOutcomeDTO struct {
	OrderID string `json:"order_id"`
	TrackID int64  `json:"track_id"`
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func reconcileResponse(s *usecase.ReconcileSummary) reconcileDTO {
	out := reconcileDTO{
		Total:            s.Total,
		Reconciled:       s.Reconciled,
		AlreadyProcessed: s.AlreadyProcessed,
		Failed:           s.Failed,
	}
	for _, o := range s.Outcomes {
		dto := reconcileOutcomeDTO{
			OrderID: o.OrderID,
			TrackID: o.TrackID,
			Action:  o.Action,
			Message: o.Message,
		}
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, dto)
	}
	return out
}
