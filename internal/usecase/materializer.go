package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
)

// Compile-time check
var _ EntityMaterializer = (*materializer)(nil)

// Materialization describes what a confirmed payment turned into. Exactly one
// of OneTime and Recurring is set for OutcomeMaterialized; neither for
// OutcomeDegraded and OutcomeDuplicate.
type Materialization struct {
	Outcome   WebhookOutcome
	OneTime   *model.OneTimeSubscription
	Recurring *model.RecurringSubscription
	Card      *model.SavedCardToken
}

// SubscriptionID is the id of the created entity, or zero.
func (m *Materialization) SubscriptionID() int64 {
	switch {
	case m == nil:
		return 0
	case m.OneTime != nil:
		return m.OneTime.ID
	case m.Recurring != nil:
		return m.Recurring.ID
	}
	return 0
}

// EntityMaterializer turns a payment that just moved to success into the
// subscription entity the buyer paid for.
type EntityMaterializer interface {
	Materialize(ctx context.Context, p *model.PendingPayment, product *model.Product, n Notification) (*Materialization, error)
}

type materializer struct {
	tokenizations repository.PendingTokenizationRepository
	oneTime       repository.OneTimeSubscriptionRepository
	recurring     repository.RecurringSubscriptionRepository
	cards         repository.CardTokenRepository
	processor     adapter.PaymentProcessor
	tm            repository.TransactionManager
	log           *zerolog.Logger
	now           func() time.Time
}

func NewMaterializer(
	tokenizations repository.PendingTokenizationRepository,
	oneTime repository.OneTimeSubscriptionRepository,
	recurring repository.RecurringSubscriptionRepository,
	cards repository.CardTokenRepository,
	processor adapter.PaymentProcessor,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *materializer {
	l := logger.With().Str("component", "materializer").Logger()
	return &materializer{
		tokenizations: tokenizations,
		oneTime:       oneTime,
		recurring:     recurring,
		cards:         cards,
		processor:     processor,
		tm:            tm,
		log:           &l,
		now:           time.Now,
	}
}

func (m *materializer) Materialize(ctx context.Context, p *model.PendingPayment, product *model.Product, n Notification) (*Materialization, error) {
	if p.PaymentType == model.PaymentTypeSubscription {
		return m.recurringGrant(ctx, p, product, n)
	}
	return m.oneTimeGrant(ctx, p, product)
}

func (m *materializer) oneTimeGrant(ctx context.Context, p *model.PendingPayment, product *model.Product) (*Materialization, error) {
	sub, err := model.NewOneTimeSubscription(p, product, m.now())
	if err != nil {
		return nil, err
	}
	created, err := m.oneTime.Create(ctx, repository.NoTX, sub)
	if err != nil {
		return nil, fmt.Errorf("create one-time subscription: %w", err)
	}
	if !created {
		return &Materialization{Outcome: OutcomeDuplicate}, nil
	}
	metrics.IncSubscriptionCreated(string(model.PaymentTypeOneTime))
	return &Materialization{Outcome: OutcomeMaterialized, OneTime: sub}, nil
}

func (m *materializer) recurringGrant(ctx context.Context, p *model.PendingPayment, product *model.Product, n Notification) (*Materialization, error) {
	log := logging.With(ctx, m.log)

	tok := m.findTokenization(ctx, p)
	walletID := n.WalletID
	if tok != nil && tok.WalletID != "" {
		walletID = tok.WalletID
	}

	cardToken, masked, cardType := n.CardToken, n.MaskedPan, n.PaymentSystem
	if (cardToken == "" || masked == "") && walletID != "" && m.processor != nil {
		st, err := m.processor.InvoiceStatus(ctx, p.InvoiceID)
		if err != nil {
			log.Warn().Err(err).Msg("card details lookup failed")
		} else {
			cardToken = firstNonEmpty(cardToken, st.CardToken)
			masked = firstNonEmpty(masked, st.MaskedPan)
			cardType = firstNonEmpty(cardType, st.PaymentSystem)
		}
	}

	if walletID == "" || cardToken == "" {
		log.Warn().Bool("has_wallet", walletID != "").Msg("subscription paid without card token")
		return &Materialization{Outcome: OutcomeDegraded}, nil
	}

	card := model.NewSavedCardToken(p.UserID, walletID, cardToken, masked, cardType)
	sub, err := model.NewRecurringSubscription(p, product, walletID, m.now())
	if err != nil {
		return nil, err
	}

	var created bool
	err = m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := m.cards.Upsert(ctx, tx, card); err != nil {
			return fmt.Errorf("save card token: %w", err)
		}
		ok, err := m.recurring.Create(ctx, tx, sub)
		if err != nil {
			return fmt.Errorf("create recurring subscription: %w", err)
		}
		created = ok
		if tok != nil {
			if err := m.tokenizations.Delete(ctx, tx, tok.LocalPaymentID); err != nil {
				return fmt.Errorf("delete pending tokenization: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &Materialization{Outcome: OutcomeDuplicate}, nil
	}
	metrics.IncSubscriptionCreated(string(model.PaymentTypeSubscription))
	return &Materialization{Outcome: OutcomeMaterialized, Recurring: sub, Card: card}, nil
}

// findTokenization tries the local payment id, then the invoice id used as a
// local id, then the invoice id column. Nil means nothing matched.
func (m *materializer) findTokenization(ctx context.Context, p *model.PendingPayment) *model.PendingTokenization {
	lookups := []func() (*model.PendingTokenization, error){
		func() (*model.PendingTokenization, error) {
			return m.tokenizations.FindByLocalPaymentID(ctx, repository.NoTX, p.PaymentID)
		},
		func() (*model.PendingTokenization, error) {
			return m.tokenizations.FindByLocalPaymentID(ctx, repository.NoTX, p.InvoiceID)
		},
		func() (*model.PendingTokenization, error) {
			return m.tokenizations.FindByInvoiceID(ctx, repository.NoTX, p.InvoiceID)
		},
	}
	for _, find := range lookups {
		tok, err := find()
		if err == nil {
			return tok
		}
		if !errors.Is(err, domain.ErrNotFound) {
			m.log.Warn().Err(err).Str("invoice_id", p.InvoiceID).Msg("pending tokenization lookup failed")
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
