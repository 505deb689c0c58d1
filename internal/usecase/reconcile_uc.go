package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// SweepResult counts what one pass over stale pending payments did.
type SweepResult struct {
	Checked    int
	Reconciled int // status read fed into the webhook path
	Expired    int
	Failed     int
	Recovered  int // paid subscriptions whose card token arrived late
}

// cardRetryWindow is how long a paid subscription without a card token keeps
// being retried.
const cardRetryWindow = 24 * time.Hour

// ReconcileUseCase recovers lost webhooks by reading invoice status from the
// processor and replaying it through WebhookUseCase. It also retries paid
// subscriptions that settled without a card token.
type ReconcileUseCase interface {
	ReconcileInvoice(ctx context.Context, invoiceID string) (WebhookOutcome, error)
	SweepPending(ctx context.Context) (SweepResult, error)
}

type reconcileUC struct {
	payments      repository.PendingPaymentRepository
	tokenizations repository.PendingTokenizationRepository
	products      repository.ProductRepository
	processor     adapter.PaymentProcessor
	webhooks      WebhookUseCase
	materializer  EntityMaterializer
	staleAfter  time.Duration
	expireAfter time.Duration
	batch       int
	now         func() time.Time
	log         *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PendingPaymentRepository,
	tokenizations repository.PendingTokenizationRepository,
	products repository.ProductRepository,
	processor adapter.PaymentProcessor,
	webhooks WebhookUseCase,
	materializer EntityMaterializer,
	staleAfter, expireAfter time.Duration,
	batch int,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "reconcile_uc").Logger()
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if expireAfter <= 0 {
		expireAfter = 2 * time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	return &reconcileUC{
		payments:      payments,
		tokenizations: tokenizations,
		products:      products,
		processor:     processor,
		webhooks:      webhooks,
		materializer:  materializer,
		staleAfter:    staleAfter,
		expireAfter:   expireAfter,
		batch:         batch,
		now:           time.Now,
		log:           &l,
	}
}

func (u *reconcileUC) ReconcileInvoice(ctx context.Context, invoiceID string) (WebhookOutcome, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return OutcomeRejected, domain.ErrBadRequest
	}
	st, err := u.processor.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		return OutcomeError, err
	}
	n := NotificationFromStatus(st)
	if n.InvoiceID == "" {
		n.InvoiceID = invoiceID
	}
	return u.webhooks.Handle(ctx, n)
}

// SweepPending replays the processor status of pending payments older than
// staleAfter. Rows past expireAfter that the processor still reports as open,
// or no longer knows, are closed as expired.
func (u *reconcileUC) SweepPending(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := u.now()
	rows, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, now.Add(-u.staleAfter), u.batch)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}

	for _, p := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		log := u.log.With().Str("invoice_id", p.InvoiceID).Logger()

		outcome, err := u.ReconcileInvoice(ctx, p.InvoiceID)
		switch {
		case err == nil && outcome != OutcomeIgnored:
			res.Reconciled++
			log.Info().Str("outcome", string(outcome)).Msg("pending payment reconciled")
			continue
		case err != nil && !isUnknownInvoice(err):
			res.Failed++
			log.Warn().Err(err).Msg("reconcile failed")
			continue
		}

		if now.Sub(p.CreatedAt) < u.expireAfter {
			continue
		}
		changed, err := u.payments.MarkTerminalIfPending(ctx, repository.NoTX, p.InvoiceID, model.PaymentStatusExpired)
		if err != nil {
			res.Failed++
			log.Error().Err(err).Msg("expire pending payment")
			continue
		}
		if changed {
			res.Expired++
			log.Info().Dur("age", now.Sub(p.CreatedAt)).Msg("pending payment expired")
		}
	}
	if res.Expired > 0 {
		metrics.IncPaymentsExpired(res.Expired)
	}
	if err := u.retryCardTokens(ctx, now, &res); err != nil {
		return res, err
	}
	return res, nil
}

// retryCardTokens walks pending tokenizations past staleAfter. A paid
// subscription still holding one settled without a card token, so the
// processor is asked again. Rows whose payment is closed or gone are dropped.
func (u *reconcileUC) retryCardTokens(ctx context.Context, now time.Time, res *SweepResult) error {
	if u.tokenizations == nil || u.materializer == nil {
		return nil
	}
	toks, err := u.tokenizations.ListCreatedBetween(ctx, repository.NoTX, now.Add(-cardRetryWindow), now.Add(-u.staleAfter), u.batch)
	if err != nil {
		return fmt.Errorf("list tokenizations: %w", err)
	}

	for _, tok := range toks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := u.log.With().Str("invoice_id", tok.InvoiceID).Str("local_payment_id", tok.LocalPaymentID).Logger()

		p, err := u.payments.FindByInvoiceID(ctx, repository.NoTX, tok.InvoiceID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			u.dropTokenization(ctx, &log, tok, res)
			continue
		case err != nil:
			res.Failed++
			log.Warn().Err(err).Msg("load payment for tokenization")
			continue
		}
		switch {
		case p.Status == model.PaymentStatusPending:
			continue
		case p.Status != model.PaymentStatusSuccess:
			u.dropTokenization(ctx, &log, tok, res)
			continue
		}

		st, err := u.processor.InvoiceStatus(ctx, p.InvoiceID)
		if err != nil {
			res.Failed++
			log.Warn().Err(err).Msg("card token retry: status read failed")
			continue
		}
		product, err := u.products.FindByID(ctx, repository.NoTX, p.ProductID)
		if err != nil {
			log.Warn().Err(err).Int64("product_id", p.ProductID).Msg("product lookup failed")
			product = &model.Product{ID: p.ProductID, Name: fmt.Sprintf("#%d", p.ProductID)}
		}
		out, err := u.materializer.Materialize(ctx, p, product, NotificationFromStatus(st))
		if err != nil {
			res.Failed++
			log.Error().Err(err).Msg("card token retry failed")
			continue
		}
		if out.Outcome == OutcomeMaterialized {
			res.Recovered++
			log.Info().Int64("subscription_id", out.SubscriptionID()).Msg("recurring subscription recovered")
		}
	}
	return nil
}

func (u *reconcileUC) dropTokenization(ctx context.Context, log *zerolog.Logger, tok *model.PendingTokenization, res *SweepResult) {
	if err := u.tokenizations.Delete(ctx, repository.NoTX, tok.LocalPaymentID); err != nil {
		res.Failed++
		log.Warn().Err(err).Msg("drop stale tokenization")
		return
	}
	log.Debug().Msg("stale tokenization dropped")
}

func isUnknownInvoice(err error) bool {
	var pe *domain.ProcessorError
	return errors.As(err, &pe) && pe.Status == http.StatusNotFound
}
