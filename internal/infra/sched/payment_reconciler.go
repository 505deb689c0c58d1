package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront/internal/usecase"
)

// PaymentReconciler periodically replays the processor status of stale pending
// payments. It covers webhooks that never arrived and closes abandoned intents.
type PaymentReconciler struct {
	interval time.Duration
	uc       usecase.ReconcileUseCase
	log      *zerolog.Logger
}

func NewPaymentReconciler(interval time.Duration, uc usecase.ReconcileUseCase, logger *zerolog.Logger) *PaymentReconciler {
	compLog := logger.With().Str("component", "PaymentReconciler").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &PaymentReconciler{interval: interval, uc: uc, log: &compLog}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	res, err := w.uc.SweepPending(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("payment sweep failed")
		return
	}
	if res.Checked > 0 || res.Recovered > 0 {
		w.log.Info().
			Int("checked", res.Checked).
			Int("reconciled", res.Reconciled).
			Int("expired", res.Expired).
			Int("failed", res.Failed).
			Int("recovered", res.Recovered).
			Msg("payment sweep finished")
	}
}
