package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/infra/metrics"
	"github.com/mehran-shabani/Apatie/internal/infra/redis"
	"github.com/mehran-shabani/Apatie/internal/usecase"
)

const reconcileLockKey = "reconcile:zibal"

// PaymentReconciler runs the reconciliation sweep on a timer. A redis lock
// keeps multiple replicas from sweeping at once; row-level correctness does
// not depend on it.
type PaymentReconciler struct {
	recUC    usecase.ReconcileUseCase
	locker   redis.Locker
	interval time.Duration
	opts     usecase.ReconcileOptions
	log      *zerolog.Logger
}

func NewPaymentReconciler(recUC usecase.ReconcileUseCase, locker redis.Locker, interval time.Duration, opts usecase.ReconcileOptions, logger *zerolog.Logger) *PaymentReconciler {
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	return &PaymentReconciler{recUC: recUC, locker: locker, interval: interval, opts: opts, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcileLockKey, w.interval/2)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Debug().Msg("another replica holds the reconcile lock")
				return
			}
			w.log.Warn().Err(err).Msg("reconcile lock error; sweeping anyway")
		} else {
			defer func() {
				if err := w.locker.Unlock(ctx, reconcileLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("reconcile unlock failed")
				}
			}()
		}
	}

	sum, err := w.recUC.Run(ctx, w.opts)
	if err != nil {
		metrics.IncReconcileRun("error")
		w.log.Error().Err(err).Msg("reconcile sweep failed")
		return
	}
	metrics.IncReconcileRun("ok")
	for _, o := range sum.Outcomes {
		metrics.IncReconcileOutcome(o.Action)
	}
	if sum.Total > 0 {
		w.log.Info().
			Int("total", sum.Total).
			Int("reconciled", sum.Reconciled).
			Int("already_processed", sum.AlreadyProcessed).
			Int("failed", sum.Failed).
			Msg("reconcile sweep done")
	}
}
