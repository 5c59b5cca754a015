package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/adapter"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// StartSubscriptionInput describes a subscription purchase request.
type StartSubscriptionInput struct {
	UserID   string
	VendorID *string
	PlanType model.PlanType
	Months   int
	Mobile   string
}

// CreateTransactionInput creates a bare ledger entry for non-subscription
// purposes (appointment deposits, delivery fees).
type CreateTransactionInput struct {
	UserID    string
	VendorID  *string
	Purpose   model.PaymentPurpose
	AmountIRR int64
	Meta      map[string]interface{}
}

// StartResult is what the CRUD layer needs to redirect the user to the gateway.
type StartResult struct {
	OrderID        string
	TrackID        int64
	RedirectURL    string
	AmountIRR      int64
	AmountDisplay  string
	SubscriptionID string
}

// CallbackOutcome is the structured result of a callback or reconciliation
// finalization. Raw gateway payloads never leak through it.
type CallbackOutcome struct {
	OrderID        string
	Status         model.PaymentStatus
	ResultCode     *int
	Message        string
	PaidAt         *time.Time
	SubscriptionID string
	Purpose        model.PaymentPurpose
	AmountIRR      int64
	Redirect       string
	// Finalized is true only when this call moved the transaction to a
	// terminal status; duplicate callbacks answered from the ledger leave
	// it false.
	Finalized bool
}

func (o *CallbackOutcome) Paid() bool { return o.Status == model.PaymentStatusPaid }

type PaymentUseCase interface {
	// StartSubscription creates a pending subscription plus its transaction
	// and runs the gateway request leg.
	StartSubscription(ctx context.Context, in StartSubscriptionInput) (*StartResult, error)
	// CreateTransaction records an initiated ledger entry without contacting
	// the gateway.
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (*model.PaymentTransaction, error)
	// StartPayment runs the gateway request leg for an existing initiated
	// transaction.
	StartPayment(ctx context.Context, orderID, mobile, description string) (*StartResult, error)
	// HandleCallback verifies and finalizes a transaction under a row lock.
	// It is safe to invoke any number of times for the same track id.
	HandleCallback(ctx context.Context, trackID int64) (*CallbackOutcome, error)
	// GetTransaction reads a transaction by its order id.
	GetTransaction(ctx context.Context, orderID string) (*model.PaymentTransaction, error)
}

const paymentFailedFallback = "پرداخت ناموفق"

type paymentUC struct {
	payments repository.PaymentTransactionRepository
	subs     repository.SubscriptionRepository
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager

	callbackURL         string
	frontendBase        string
	baseMonthlyPriceIRR int64
	log                 *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentTransactionRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	callbackURL, frontendBase string,
	baseMonthlyPriceIRR int64,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:            payments,
		subs:                subs,
		gateway:             gateway,
		tm:                  tm,
		callbackURL:         callbackURL,
		frontendBase:        frontendBase,
		baseMonthlyPriceIRR: baseMonthlyPriceIRR,
		log:                 &l,
	}
}

func (u *paymentUC) StartSubscription(ctx context.Context, in StartSubscriptionInput) (*StartResult, error) {
	if in.UserID == "" || in.Months <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if in.PlanType == "" {
		in.PlanType = model.PlanTypeBusiness
	}

	amount := CalculateSubscriptionAmount(in.Months, u.baseMonthlyPriceIRR)
	orderID := GenerateOrderID("AP", in.UserID)

	sub, err := model.NewSubscription(uuid.NewString(), in.UserID, in.VendorID, in.PlanType, in.Months)
	if err != nil {
		return nil, err
	}
	txn, err := model.NewPaymentTransaction(uuid.NewString(), in.UserID, orderID, model.PurposeSubscription, model.GatewayZibal, amount)
	if err != nil {
		return nil, err
	}
	txn.VendorID = in.VendorID
	txn.CallbackURL = u.callbackURL
	txn.Meta = map[string]interface{}{
		"subscription_id": sub.ID,
		"plan_type":       string(in.PlanType),
		"months":          in.Months,
	}

	// Both rows land together so a crashed request leg leaves a consistent
	// initiated/pending pair for the reconciler or a retry.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		return u.payments.Save(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("اشتراک %d ماهه %s", in.Months, in.PlanType)
	return u.requestLeg(ctx, txn, in.Mobile, desc, sub.ID)
}

func (u *paymentUC) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*model.PaymentTransaction, error) {
	if in.Purpose == "" {
		return nil, domain.ErrInvalidArgument
	}
	orderID := GenerateOrderID("AP", in.UserID)
	txn, err := model.NewPaymentTransaction(uuid.NewString(), in.UserID, orderID, in.Purpose, model.GatewayZibal, in.AmountIRR)
	if err != nil {
		return nil, err
	}
	txn.VendorID = in.VendorID
	txn.CallbackURL = u.callbackURL
	if in.Meta != nil {
		txn.Meta = in.Meta
	}
	if err := u.payments.Save(ctx, nil, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (u *paymentUC) GetTransaction(ctx context.Context, orderID string) (*model.PaymentTransaction, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.payments.FindByOrderID(ctx, nil, orderID)
}

func (u *paymentUC) StartPayment(ctx context.Context, orderID, mobile, description string) (*StartResult, error) {
	txn, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.PaymentStatusInitiated {
		return nil, domain.ErrTerminalStatus
	}
	subID, _ := txn.SubscriptionID()
	return u.requestLeg(ctx, txn, mobile, description, subID)
}

// requestLeg runs the gateway request for an initiated transaction and moves
// it to pending with the assigned track id.
func (u *paymentUC) requestLeg(ctx context.Context, txn *model.PaymentTransaction, mobile, description, subscriptionID string) (*StartResult, error) {
	res, err := u.gateway.RequestPayment(ctx, adapter.PaymentRequest{
		AmountIRR:   txn.AmountIRR,
		OrderID:     txn.OrderID,
		CallbackURL: txn.CallbackURL,
		Mobile:      mobile,
		Description: description,
	})
	if err != nil {
		u.log.Error().Err(err).Str("order_id", txn.OrderID).Msg("gateway request failed")
		if markErr := txn.MarkFailed(nil, err.Error()); markErr == nil {
			if saveErr := u.payments.Save(ctx, nil, txn); saveErr != nil {
				u.log.Error().Err(saveErr).Str("order_id", txn.OrderID).Msg("failed to persist failed transaction")
			}
		}
		return nil, err
	}
	if !res.Success {
		u.log.Warn().Int("result", res.ResultCode).Str("order_id", txn.OrderID).Msg("gateway rejected payment request")
		if markErr := txn.MarkFailed(&res.ResultCode, res.Message); markErr == nil {
			if saveErr := u.payments.Save(ctx, nil, txn); saveErr != nil {
				u.log.Error().Err(saveErr).Str("order_id", txn.OrderID).Msg("failed to persist failed transaction")
			}
		}
		return nil, fmt.Errorf("payment request rejected: result=%d %s", res.ResultCode, res.Message)
	}

	if err := txn.MarkPending(res.TrackID); err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, nil, txn); err != nil {
		return nil, err
	}

	u.log.Info().
		Str("order_id", txn.OrderID).
		Int64("track_id", res.TrackID).
		Int64("amount", txn.AmountIRR).
		Msg("payment started")

	return &StartResult{
		OrderID:        txn.OrderID,
		TrackID:        res.TrackID,
		RedirectURL:    u.gateway.StartURL(res.TrackID),
		AmountIRR:      txn.AmountIRR,
		AmountDisplay:  FormatAmountDisplay(txn.AmountIRR),
		SubscriptionID: subscriptionID,
	}, nil
}

// HandleCallback implements the verify-then-commit path. The row is locked
// FOR UPDATE for the whole sequence, so a concurrent reconciler or a second
// callback serializes behind it and sees the final status.
func (u *paymentUC) HandleCallback(ctx context.Context, trackID int64) (*CallbackOutcome, error) {
	var out *CallbackOutcome
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		txn, err := u.payments.FindByTrackID(ctx, tx, model.GatewayZibal, trackID)
		if err != nil {
			return err
		}

		// Idempotent short-circuit: a finalized payment is answered from the
		// ledger without another gateway round-trip.
		if txn.Status == model.PaymentStatusPaid {
			u.log.Info().Str("order_id", txn.OrderID).Msg("payment already processed")
			out = u.buildOutcome(txn)
			return nil
		}

		vr, verifyErr := u.gateway.VerifyPayment(ctx, trackID)
		if verifyErr != nil {
			u.log.Error().Err(verifyErr).Str("order_id", txn.OrderID).Msg("verify error")
			msg := "خطای تأیید پرداخت: " + verifyErr.Error()
			if markErr := txn.MarkFailed(nil, msg); markErr != nil {
				if errors.Is(markErr, domain.ErrTerminalStatus) {
					out = u.buildOutcome(txn)
					return nil
				}
				return markErr
			}
			if err := u.payments.Save(ctx, tx, txn); err != nil {
				return err
			}
			out = u.buildOutcome(txn)
			out.Finalized = true
			return nil
		}

		finalized := false
		if vr.Success {
			changed, err := applyPaidTransaction(ctx, tx, u.payments, u.subs, txn, vr, u.log)
			if err != nil {
				return err
			}
			finalized = changed
		} else {
			msg := vr.Message
			if msg == "" {
				msg = paymentFailedFallback
			}
			code := vr.ResultCode
			if markErr := txn.MarkFailed(&code, msg); markErr != nil && !errors.Is(markErr, domain.ErrTerminalStatus) {
				return markErr
			}
			if err := u.payments.Save(ctx, tx, txn); err != nil {
				return err
			}
			finalized = true
			u.log.Warn().Str("order_id", txn.OrderID).Int("result", vr.ResultCode).Msg("payment failed")
		}

		out = u.buildOutcome(txn)
		out.Finalized = finalized
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyPaidTransaction commits the pending->paid transition and activates the
// linked subscription inside the caller's transaction, so both land
// atomically. A duplicate verify (already paid) changes nothing and activates
// nothing. Shared by the callback path and the reconciler.
func applyPaidTransaction(
	ctx context.Context,
	tx repository.Tx,
	payments repository.PaymentTransactionRepository,
	subs repository.SubscriptionRepository,
	txn *model.PaymentTransaction,
	vr *adapter.VerifyResult,
	log *zerolog.Logger,
) (bool, error) {
	changed, err := txn.MarkPaid(vr.ResultCode, vr.RefNumber, MaskCardPAN(vr.CardPANMasked))
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if txn.Meta == nil {
		txn.Meta = map[string]interface{}{}
	}
	txn.Meta["verified_at"] = vr.PaidAtRaw
	txn.Meta["verify_amount"] = vr.AmountIRR
	if err := payments.Save(ctx, tx, txn); err != nil {
		return false, err
	}

	if txn.Purpose == model.PurposeSubscription {
		if err := activateSubscription(ctx, tx, subs, txn, log); err != nil {
			return false, err
		}
	}
	log.Info().Str("order_id", txn.OrderID).Msg("payment completed")
	return true, nil
}

func activateSubscription(ctx context.Context, tx repository.Tx, subs repository.SubscriptionRepository, txn *model.PaymentTransaction, log *zerolog.Logger) error {
	subID, ok := txn.SubscriptionID()
	if !ok {
		log.Warn().Str("order_id", txn.OrderID).Msg("paid subscription transaction has no subscription_id in meta")
		return nil
	}
	sub, err := subs.FindByID(ctx, tx, subID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Error().Str("subscription_id", subID).Msg("subscription not found")
			return nil
		}
		return err
	}
	sub.PaymentTransactionID = &txn.ID
	sub.AmountPaid = txn.AmountIRR
	sub.Activate(txn.Months())
	if err := subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	log.Info().Str("subscription_id", sub.ID).Str("order_id", txn.OrderID).Msg("subscription activated")
	return nil
}

func (u *paymentUC) buildOutcome(txn *model.PaymentTransaction) *CallbackOutcome {
	subID, _ := txn.SubscriptionID()
	redirect := u.frontendBase + "/payment/failed?order_id=" + txn.OrderID
	if txn.Status == model.PaymentStatusPaid {
		redirect = u.frontendBase + "/payment/success?order_id=" + txn.OrderID
	}
	return &CallbackOutcome{
		OrderID:        txn.OrderID,
		Status:         txn.Status,
		ResultCode:     txn.ResultCode,
		Message:        txn.Message,
		PaidAt:         txn.PaidAt,
		SubscriptionID: subID,
		Purpose:        txn.Purpose,
		AmountIRR:      txn.AmountIRR,
		Redirect:       redirect,
	}
}
