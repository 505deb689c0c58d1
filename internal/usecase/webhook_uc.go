package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
	"telegram-storefront/internal/infra/redis"
)

// WebhookOutcome is what a status notification did to the ledger. None of
// the outcomes except OutcomeError is a failure; every one is acknowledged.
type WebhookOutcome string

const (
	OutcomeMaterialized WebhookOutcome = "materialized" // success applied, entity created
	OutcomeDegraded     WebhookOutcome = "degraded"     // subscription paid but no card token
	OutcomeDuplicate    WebhookOutcome = "duplicate"    // success already applied by another delivery
	OutcomeTerminal     WebhookOutcome = "terminal"     // pending row moved to failure/cancelled/expired
	OutcomeNoop         WebhookOutcome = "noop"         // terminal status for a row that is not pending
	OutcomeIgnored      WebhookOutcome = "ignored"      // non-terminal status such as processing
	OutcomeOrphan       WebhookOutcome = "orphan"       // no ledger row for the invoice
	OutcomeRejected     WebhookOutcome = "rejected"     // no invoice id
	OutcomeError        WebhookOutcome = "error"
)

// settleTimeout bounds the work that follows the success transition.
const settleTimeout = 2 * time.Minute

// Notification is one processor status report, from the webhook or the poller.
// Card fields are optional and only meaningful for tokenized invoices.
type Notification struct {
	InvoiceID     string
	Status        string
	Reference     string
	CardToken     string
	WalletID      string
	MaskedPan     string
	PaymentSystem string
}

// NotificationFromStatus adapts a processor status read to a Notification.
func NotificationFromStatus(st *adapter.InvoiceStatus) Notification {
	return Notification{
		InvoiceID:     st.InvoiceID,
		Status:        st.Status,
		Reference:     st.Reference,
		CardToken:     st.CardToken,
		WalletID:      st.WalletID,
		MaskedPan:     st.MaskedPan,
		PaymentSystem: st.PaymentSystem,
	}
}

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// Handle applies a status report to the ledger. It is safe under
	// duplicate and concurrent deliveries of the same report.
	Handle(ctx context.Context, n Notification) (WebhookOutcome, error)
}

type webhookUC struct {
	payments     repository.PendingPaymentRepository
	users        repository.UserRepository
	products     repository.ProductRepository
	materializer EntityMaterializer
	referrals    ReferralUseCase
	notes        *Notifications
	publisher    adapter.EventPublisher
	locker       redis.Locker
	lockTTL      time.Duration
	bg           detached
	log          *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PendingPaymentRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	materializer EntityMaterializer,
	referrals ReferralUseCase,
	notes *Notifications,
	publisher adapter.EventPublisher,
	locker redis.Locker,
	lockTTL time.Duration,
	tasks TaskSubmitter,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "webhook_uc").Logger()
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &webhookUC{
		payments:     payments,
		users:        users,
		products:     products,
		materializer: materializer,
		referrals:    referrals,
		notes:        notes,
		publisher:    publisher,
		locker:       locker,
		lockTTL:      lockTTL,
		bg:           detached{tasks: tasks, log: &l},
		log:          &l,
	}
}

func (u *webhookUC) Handle(ctx context.Context, n Notification) (outcome WebhookOutcome, err error) {
	n.InvoiceID = strings.TrimSpace(n.InvoiceID)
	status := model.ParsePaymentStatus(n.Status)
	start := time.Now()
	defer func() {
		metrics.IncWebhookEvent(string(status), string(outcome))
		metrics.ObserveWebhook(string(outcome), time.Since(start).Seconds())
	}()

	if n.InvoiceID == "" {
		return OutcomeRejected, domain.ErrBadRequest
	}
	ctx = logging.WithInvoiceID(ctx, n.InvoiceID)
	log := logging.With(ctx, u.log).With().Str("status", string(status)).Logger()

	if unlock := u.lock(ctx, &log, n.InvoiceID); unlock != nil {
		defer unlock()
	}

	switch {
	case status.IsUnsuccessful():
		return u.markTerminal(ctx, &log, n.InvoiceID, status)
	case status == model.PaymentStatusSuccess:
		return u.applySuccess(ctx, &log, n)
	default:
		log.Debug().Msg("non-terminal status acknowledged")
		return OutcomeIgnored, nil
	}
}

// lock serializes near-simultaneous deliveries for one invoice. A held lock
// or an unavailable redis does not stop processing; the conditional updates
// below stay authoritative.
func (u *webhookUC) lock(ctx context.Context, log *zerolog.Logger, invoiceID string) func() {
	if u.locker == nil {
		return nil
	}
	key := redis.WebhookLockKey(invoiceID)
	token, err := u.locker.TryLock(ctx, key, u.lockTTL)
	switch {
	case err == nil:
		return func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Msg("release invoice lock")
			}
		}
	case errors.Is(err, domain.ErrLockHeld):
		log.Debug().Msg("invoice lock held by a concurrent delivery")
	default:
		log.Warn().Err(err).Msg("invoice lock unavailable, continuing without it")
	}
	return nil
}

func (u *webhookUC) markTerminal(ctx context.Context, log *zerolog.Logger, invoiceID string, status model.PaymentStatus) (WebhookOutcome, error) {
	changed, err := u.payments.MarkTerminalIfPending(ctx, repository.NoTX, invoiceID, status)
	if err != nil {
		log.Error().Err(err).Msg("mark payment terminal")
		return OutcomeError, fmt.Errorf("mark payment %s: %w", status, err)
	}
	if !changed {
		return OutcomeNoop, nil
	}
	metrics.IncPayment(string(status))
	log.Info().Msg("payment closed")
	return OutcomeTerminal, nil
}

func (u *webhookUC) applySuccess(ctx context.Context, log *zerolog.Logger, n Notification) (WebhookOutcome, error) {
	p, err := u.payments.FindByInvoiceID(ctx, repository.NoTX, n.InvoiceID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("success for unknown invoice")
		return OutcomeOrphan, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("load pending payment")
		return OutcomeError, fmt.Errorf("load payment: %w", err)
	}
	if p.Status == model.PaymentStatusSuccess {
		return OutcomeDuplicate, nil
	}

	ctx = logging.WithTgID(ctx, p.UserID)
	buyer, partner, err := u.loadParties(ctx, log, p.UserID)
	if err != nil {
		return OutcomeError, err
	}

	changed, err := u.payments.MarkSuccess(ctx, repository.NoTX, n.InvoiceID)
	if err != nil {
		log.Error().Err(err).Msg("mark payment success")
		return OutcomeError, fmt.Errorf("mark payment success: %w", err)
	}
	if !changed {
		return OutcomeDuplicate, nil
	}
	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue(string(p.PaymentType), p.Amount.InexactFloat64())

	// The ledger row is already success and no later delivery will settle it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	product := u.resolveProduct(ctx, p.ProductID)

	res, matErr := u.materializer.Materialize(ctx, p, product, n)
	if matErr != nil {
		log.Error().Err(matErr).Str("payment_type", string(p.PaymentType)).Msg("materialize paid payment")
	}

	credit := decimal.Zero
	if partner != nil && u.referrals != nil {
		c, err := u.referrals.CreditReferral(ctx, partner.UserID, p.UserID, p.Amount, product.Name, p.PaymentType, p.InvoiceID)
		if err != nil {
			log.Error().Err(err).Int64("partner_id", partner.UserID).Msg("referral credit failed")
		} else {
			credit = c
		}
	}

	if matErr != nil {
		return OutcomeError, matErr
	}
	if res.Outcome == OutcomeDuplicate {
		return OutcomeDuplicate, nil
	}

	u.notes.paymentSucceeded(ctx, sale{payment: p, product: product, buyer: buyer, partner: partner, credit: credit, result: res})
	u.publish(ctx, p, res)
	log.Info().Str("outcome", string(res.Outcome)).Msg("payment settled")
	return res.Outcome, nil
}

func (u *webhookUC) resolveProduct(ctx context.Context, id int64) *model.Product {
	product, err := u.products.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Int64("product_id", id).Msg("product lookup failed")
		return &model.Product{ID: id, Name: fmt.Sprintf("#%d", id)}
	}
	return product
}

// loadParties reads the buyer and their referrer. Only a missing row is
// tolerated; any other failure leaves the payment pending for the poller.
func (u *webhookUC) loadParties(ctx context.Context, log *zerolog.Logger, buyerID int64) (buyer, partner *model.User, err error) {
	buyer, err = u.users.FindByTelegramID(ctx, repository.NoTX, buyerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("buyer not registered, settling without referral")
		return &model.User{UserID: buyerID}, nil, nil
	case err != nil:
		log.Error().Err(err).Msg("load buyer")
		return nil, nil, fmt.Errorf("load buyer %d: %w", buyerID, err)
	}
	if !buyer.HasReferrer() {
		return buyer, nil, nil
	}

	partner, err = u.users.FindByTelegramID(ctx, repository.NoTX, *buyer.RefID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Int64("partner_id", *buyer.RefID).Msg("referrer not registered, skipping credit")
		return buyer, nil, nil
	case err != nil:
		log.Error().Err(err).Int64("partner_id", *buyer.RefID).Msg("load referrer")
		return nil, nil, fmt.Errorf("load referrer %d: %w", *buyer.RefID, err)
	}
	return buyer, partner, nil
}

func (u *webhookUC) publish(ctx context.Context, p *model.PendingPayment, res *Materialization) {
	if u.publisher == nil {
		return
	}
	ev := adapter.PaymentSucceededEvent{
		InvoiceID:      p.InvoiceID,
		PaymentID:      p.PaymentID,
		UserID:         p.UserID,
		ProductID:      p.ProductID,
		PaymentType:    string(p.PaymentType),
		Amount:         p.Amount.String(),
		Months:         p.Months,
		Outcome:        string(res.Outcome),
		SubscriptionID: res.SubscriptionID(),
		Timestamp:      time.Now().UTC(),
	}
	u.bg.run(ctx, "publish.payment_succeeded", func(ctx context.Context) error {
		return u.publisher.PublishPaymentSucceeded(ctx, ev)
	})
}
