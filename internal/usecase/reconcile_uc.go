package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/adapter"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

const (
	msgPaymentCancelled = "پرداخت لغو شد"
	msgPaymentExpired   = "منقضی شده"
)

// Reconcile actions, reported per transaction.
const (
	ActionVerifiedPaid     = "verified_paid"
	ActionVerifyRejected   = "verify_rejected"
	ActionMarkedFailed     = "marked_failed"
	ActionMarkedExpired    = "marked_expired"
	ActionAlreadyProcessed = "already_processed"
	ActionSkipped          = "skipped"
	ActionError            = "error"
)

// ReconcileOptions tunes a single sweep.
type ReconcileOptions struct {
	// Lookback bounds the candidate window: transactions created before
	// now-Lookback are left alone.
	Lookback time.Duration
	// TrackID, when non-nil, reconciles exactly one transaction regardless
	// of the window.
	TrackID *int64
	// DryRun performs the provider inquiry but never verifies and never
	// writes local state.
	DryRun bool
	// Limit caps the candidate batch. Zero means the repository default.
	Limit int
	// StaleAfter is the age past which a still-pending payment is expired.
	StaleAfter time.Duration
}

// ReconcileOutcome is the per-transaction result of a sweep.
type ReconcileOutcome struct {
	OrderID string
	TrackID int64
	Action  string
	Message string
	Err     error
}

// ReconcileSummary aggregates a sweep.
type ReconcileSummary struct {
	Total            int
	Reconciled       int
	AlreadyProcessed int
	Failed           int
	Outcomes         []ReconcileOutcome
}

type ReconcileUseCase interface {
	// Run sweeps non-terminal transactions against the provider and settles
	// each one: paid ones get verified and committed, cancelled ones marked
	// failed, stale pending ones expired. Provider errors on a single
	// transaction never abort the sweep.
	Run(ctx context.Context, opts ReconcileOptions) (*ReconcileSummary, error)
}

type reconcileUC struct {
	payments repository.PaymentTransactionRepository
	subs     repository.SubscriptionRepository
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager

	defaultStaleAfter time.Duration
	log               *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PaymentTransactionRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	defaultStaleAfter time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	if defaultStaleAfter <= 0 {
		defaultStaleAfter = 30 * time.Minute
	}
	return &reconcileUC{
		payments:          payments,
		subs:              subs,
		gateway:           gateway,
		tm:                tm,
		defaultStaleAfter: defaultStaleAfter,
		log:               &l,
	}
}

func (u *reconcileUC) Run(ctx context.Context, opts ReconcileOptions) (*ReconcileSummary, error) {
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = u.defaultStaleAfter
	}
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	filter := repository.ReconcileFilter{
		Gateway:      model.GatewayZibal,
		CreatedAfter: time.Now().Add(-lookback),
		TrackID:      opts.TrackID,
		Limit:        opts.Limit,
	}
	candidates, err := u.payments.ListReconcilable(ctx, nil, filter)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{Total: len(candidates)}
	for _, txn := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		out := u.reconcileOne(ctx, txn, opts.DryRun, staleAfter)
		summary.Outcomes = append(summary.Outcomes, out)
		switch out.Action {
		case ActionVerifiedPaid, ActionMarkedFailed, ActionMarkedExpired:
			summary.Reconciled++
		case ActionAlreadyProcessed:
			summary.AlreadyProcessed++
		case ActionVerifyRejected, ActionError:
			summary.Failed++
		}
	}

	u.log.Info().
		Bool("dry_run", opts.DryRun).
		Int("total", summary.Total).
		Int("reconciled", summary.Reconciled).
		Int("already_processed", summary.AlreadyProcessed).
		Int("failed", summary.Failed).
		Msg("reconcile sweep finished")
	return summary, nil
}

// reconcileOne settles a single candidate. The inquiry runs outside the
// transaction; the decision re-reads the row FOR UPDATE so a callback racing
// the sweep wins cleanly on either side.
func (u *reconcileUC) reconcileOne(ctx context.Context, txn *model.PaymentTransaction, dryRun bool, staleAfter time.Duration) ReconcileOutcome {
	out := ReconcileOutcome{OrderID: txn.OrderID}
	if txn.TrackID == nil {
		out.Action = ActionSkipped
		out.Message = "no track id"
		return out
	}
	trackID := *txn.TrackID
	out.TrackID = trackID

	inq, err := u.gateway.Inquiry(ctx, trackID)
	if err != nil {
		u.log.Warn().Err(err).Str("order_id", txn.OrderID).Int64("track_id", trackID).Msg("inquiry failed")
		out.Action = ActionError
		out.Err = err
		return out
	}

	if dryRun {
		out.Action = ActionSkipped
		out.Message = inquiryDescription(inq)
		u.log.Info().
			Str("order_id", txn.OrderID).
			Int64("track_id", trackID).
			Int("provider_status", inq.Status).
			Msg("dry run, no changes applied")
		return out
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.payments.FindByTrackID(ctx, tx, txn.Gateway, trackID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			out.Action = ActionAlreadyProcessed
			out.Message = string(locked.Status)
			return nil
		}

		switch {
		case inq.Paid():
			vr, verifyErr := u.gateway.VerifyPayment(ctx, trackID)
			if verifyErr != nil {
				// Left untouched; the next sweep retries.
				out.Action = ActionError
				out.Err = verifyErr
				return nil
			}
			if !vr.Success {
				msg := vr.Message
				if msg == "" {
					msg = paymentFailedFallback
				}
				// Left pending; the next sweep retries the verify.
				u.log.Warn().
					Str("order_id", locked.OrderID).
					Int64("track_id", trackID).
					Int("result_code", vr.ResultCode).
					Msg("verify rejected by provider")
				out.Action = ActionVerifyRejected
				out.Message = msg
				return nil
			}
			if _, err := applyPaidTransaction(ctx, tx, u.payments, u.subs, locked, vr, u.log); err != nil {
				return err
			}
			out.Action = ActionVerifiedPaid
			out.Message = vr.Message
			return nil

		case inq.Cancelled():
			code := inq.ResultCode
			if err := locked.MarkFailed(&code, msgPaymentCancelled); err != nil {
				return err
			}
			if err := u.payments.Save(ctx, tx, locked); err != nil {
				return err
			}
			out.Action = ActionMarkedFailed
			out.Message = msgPaymentCancelled
			return nil

		case inq.Pending():
			if time.Since(locked.CreatedAt) <= staleAfter {
				out.Action = ActionSkipped
				out.Message = "still pending"
				return nil
			}
			if err := locked.MarkExpired(msgPaymentExpired); err != nil {
				return err
			}
			if err := u.payments.Save(ctx, tx, locked); err != nil {
				return err
			}
			out.Action = ActionMarkedExpired
			out.Message = msgPaymentExpired
			return nil

		default:
			u.log.Warn().
				Str("order_id", locked.OrderID).
				Int("provider_status", inq.Status).
				Msg("unrecognized provider status, skipping")
			out.Action = ActionSkipped
			out.Message = inquiryDescription(inq)
			return nil
		}
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			out.Action = ActionSkipped
			out.Message = "transaction disappeared"
			return out
		}
		u.log.Error().Err(err).Str("order_id", txn.OrderID).Msg("reconcile transaction failed")
		out.Action = ActionError
		out.Err = err
	}
	return out
}

func inquiryDescription(inq *adapter.InquiryResult) string {
	switch {
	case inq.Paid():
		return "provider: paid"
	case inq.Pending():
		return "provider: pending"
	case inq.Cancelled():
		return "provider: cancelled"
	default:
		return "provider: unknown"
	}
}
