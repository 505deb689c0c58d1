package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/domain/tariff"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
)

const (
	basketUnit         = "шт."
	oneTimeCodeLimit   = 50
	tokenizedCodeLimit = 30
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	localIDOrderPrefix = "order"
	localIDSubPrefix   = "subscription"
	walletIDPrefix     = "wallet"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Intent is a created processor invoice plus the local id correlating it.
// WalletID is set only for tokenized intents.
type Intent struct {
	LocalPaymentID string
	InvoiceID      string
	CheckoutURL    string
	WalletID       string
}

type PaymentUseCase interface {
	// CreatePayment prices the product for the requested term, opens an
	// invoice on the processor and records it in the ledger.
	CreatePayment(ctx context.Context, buyerID, productID int64, months int) (*Intent, error)
	// CreateOneTimeIntent opens a plain invoice without touching the ledger.
	CreateOneTimeIntent(ctx context.Context, buyerID int64, productName string, months int, price decimal.Decimal) (*Intent, error)
	// CreateTokenizedIntent opens an invoice that saves the card under a new wallet id.
	CreateTokenizedIntent(ctx context.Context, buyerID int64, productName string, months int, price decimal.Decimal) (*Intent, error)
	// ListRecent is the admin view of the ledger. Empty status lists everything.
	ListRecent(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.PendingPayment, error)
}

type paymentUC struct {
	payments      repository.PendingPaymentRepository
	tokenizations repository.PendingTokenizationRepository
	users         repository.UserRepository
	products      repository.ProductRepository
	processor     adapter.PaymentProcessor
	tm            repository.TransactionManager
	redirectURL   string
	log           *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PendingPaymentRepository,
	tokenizations repository.PendingTokenizationRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	processor adapter.PaymentProcessor,
	tm repository.TransactionManager,
	redirectURL string,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "payment_uc").Logger()
	return &paymentUC{
		payments:      payments,
		tokenizations: tokenizations,
		users:         users,
		products:      products,
		processor:     processor,
		tm:            tm,
		redirectURL:   redirectURL,
		log:           &l,
	}
}

func (u *paymentUC) CreatePayment(ctx context.Context, buyerID, productID int64, months int) (*Intent, error) {
	if buyerID <= 0 || productID <= 0 || months <= 0 {
		return nil, domain.ErrInvalidParams
	}
	ctx = logging.WithTgID(ctx, buyerID)
	log := logging.With(ctx, u.log)

	if _, err := u.users.FindByTelegramID(ctx, repository.NoTX, buyerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load buyer: %w", err)
	}
	product, err := u.products.FindByID(ctx, repository.NoTX, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	price := tariff.ResolvePriceForTerm(product.Price, months)
	if !price.IsPositive() {
		return nil, domain.ErrInvalidPrice
	}

	pt := model.PaymentTypeForProduct(product.PaymentType)
	var intent *Intent
	if pt == model.PaymentTypeSubscription {
		intent, err = u.CreateTokenizedIntent(ctx, buyerID, product.Name, months, price)
	} else {
		intent, err = u.CreateOneTimeIntent(ctx, buyerID, product.Name, months, price)
	}
	if err != nil {
		return nil, err
	}

	pending, err := model.NewPendingPayment(intent.LocalPaymentID, intent.InvoiceID, buyerID, productID, months, price, pt)
	if err != nil {
		return nil, err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Save(ctx, tx, pending); err != nil {
			return fmt.Errorf("save pending payment: %w", err)
		}
		if pt != model.PaymentTypeSubscription {
			return nil
		}
		return u.tokenizations.Save(ctx, tx, &model.PendingTokenization{
			LocalPaymentID: intent.LocalPaymentID,
			InvoiceID:      intent.InvoiceID,
			WalletID:       intent.WalletID,
			PaymentType:    pt,
			CreatedAt:      pending.CreatedAt,
		})
	})
	if err != nil {
		// The invoice exists at the processor without a ledger row; the poller skips it.
		log.Error().Err(err).Str("orphan_invoice_id", intent.InvoiceID).Msg("persist payment intent")
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	log.Info().
		Str("invoice_id", intent.InvoiceID).
		Str("payment_type", string(pt)).
		Str("amount", price.String()).
		Msg("payment intent created")
	return intent, nil
}

func (u *paymentUC) CreateOneTimeIntent(ctx context.Context, buyerID int64, productName string, months int, price decimal.Decimal) (*Intent, error) {
	localID := newLocalID(localIDOrderPrefix, buyerID)
	inv, err := u.processor.CreateInvoice(ctx, adapter.InvoiceRequest{
		Amount:      price,
		Description: fmt.Sprintf("Оплата %s на %d міс.", productName, months),
		Reference:   localID,
		RedirectURL: u.redirectURL,
		Basket: []adapter.BasketItem{{
			Name: productName,
			Qty:  1,
			Sum:  price,
			Code: "prod_" + truncateRunes(productName, oneTimeCodeLimit),
			Unit: basketUnit,
		}},
	})
	if err != nil {
		return nil, err
	}
	return &Intent{LocalPaymentID: localID, InvoiceID: inv.InvoiceID, CheckoutURL: inv.PageURL}, nil
}

func (u *paymentUC) CreateTokenizedIntent(ctx context.Context, buyerID int64, productName string, months int, price decimal.Decimal) (*Intent, error) {
	localID := newLocalID(localIDSubPrefix, buyerID)
	walletID := newLocalID(walletIDPrefix, buyerID)
	inv, err := u.processor.CreateInvoice(ctx, adapter.InvoiceRequest{
		Amount:      price,
		Description: fmt.Sprintf("Підписка на %s на %d міс.", productName, months),
		Reference:   localID,
		RedirectURL: u.redirectURL,
		WalletID:    walletID,
		Basket: []adapter.BasketItem{{
			Name: productName,
			Qty:  1,
			Sum:  price,
			Code: "sub_" + truncateRunes(productName, tokenizedCodeLimit),
			Unit: basketUnit,
		}},
	})
	if err != nil {
		return nil, err
	}
	return &Intent{LocalPaymentID: localID, InvoiceID: inv.InvoiceID, CheckoutURL: inv.PageURL, WalletID: walletID}, nil
}

func (u *paymentUC) ListRecent(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.PendingPayment, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}
	return u.payments.ListRecent(ctx, repository.NoTX, status, limit)
}

// newLocalID returns <prefix>_<buyer>_<ulid>. The ulid entropy comes from
// crypto/rand so wallet ids cannot be guessed.
func newLocalID(prefix string, buyerID int64) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return fmt.Sprintf("%s_%d_%s", prefix, buyerID, id.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
