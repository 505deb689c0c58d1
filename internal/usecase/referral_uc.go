package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
)

// SettingReferralPercent is the partner_settings key holding the rebate percent.
const SettingReferralPercent = "referral_percent"

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

type ReferralUseCase interface {
	// CreditReferral credits the partner with a share of a confirmed purchase
	// and returns the credited amount. Zero with a nil error means nothing was
	// owed or the invoice was already credited.
	CreditReferral(ctx context.Context, partnerID, buyerID int64, amount decimal.Decimal, productName string, pt model.PaymentType, invoiceID string) (decimal.Decimal, error)
	Percent(ctx context.Context) decimal.Decimal
	ListCredits(ctx context.Context, partnerID int64, limit int) ([]*model.ReferralCredit, error)
}

type referralUC struct {
	users    repository.UserRepository
	settings repository.SettingsRepository
	credits  repository.ReferralCreditRepository
	tm       repository.TransactionManager
	notes    *Notifications
	log      *zerolog.Logger
}

func NewReferralUseCase(
	users repository.UserRepository,
	settings repository.SettingsRepository,
	credits repository.ReferralCreditRepository,
	tm repository.TransactionManager,
	notes *Notifications,
	logger *zerolog.Logger,
) *referralUC {
	l := logger.With().Str("component", "referral_uc").Logger()
	return &referralUC{users: users, settings: settings, credits: credits, tm: tm, notes: notes, log: &l}
}

// Percent reads the configured rebate. Missing, unreadable or unparsable
// settings fall back to model.DefaultReferralPercent.
func (u *referralUC) Percent(ctx context.Context) decimal.Decimal {
	raw, err := u.settings.Get(ctx, repository.NoTX, SettingReferralPercent)
	if err != nil {
		return model.DefaultReferralPercent
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		u.log.Warn().Str("value", raw).Msg("unparsable referral percent, using default")
		return model.DefaultReferralPercent
	}
	return pct
}

func (u *referralUC) CreditReferral(ctx context.Context, partnerID, buyerID int64, amount decimal.Decimal, productName string, pt model.PaymentType, invoiceID string) (decimal.Decimal, error) {
	log := logging.With(ctx, u.log)
	if partnerID <= 0 || partnerID == buyerID {
		return decimal.Zero, nil
	}

	percent := u.Percent(ctx)
	credit := model.ComputeReferralCredit(amount, percent)
	if !credit.IsPositive() {
		metrics.IncReferralCredit("skipped")
		return decimal.Zero, nil
	}

	rc := &model.ReferralCredit{
		PartnerID:      partnerID,
		BuyerID:        buyerID,
		PurchaseAmount: amount,
		CreditAmount:   credit,
		Percent:        percent,
		ProductName:    productName,
		PaymentType:    pt,
		InvoiceID:      invoiceID,
		CreatedAt:      time.Now(),
	}

	var applied bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.credits.Append(ctx, tx, rc)
		if err != nil {
			return fmt.Errorf("append referral credit: %w", err)
		}
		if !ok {
			return nil
		}
		if err := u.users.AddPartnerBalance(ctx, tx, partnerID, credit); err != nil {
			return fmt.Errorf("add partner balance: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		metrics.IncReferralCredit("failed")
		return decimal.Zero, err
	}
	if !applied {
		metrics.IncReferralCredit("duplicate")
		return decimal.Zero, nil
	}

	metrics.IncReferralCredit("credited")
	metrics.AddReferralCreditAmount(credit.InexactFloat64())
	log.Info().Int64("partner_id", partnerID).Str("credit", credit.String()).Msg("referral credited")

	buyer, err := u.users.FindByTelegramID(ctx, repository.NoTX, buyerID)
	if err != nil {
		buyer = &model.User{UserID: buyerID}
	}
	u.notes.partnerCredited(ctx, partnerID, buyer, productName, amount, credit)
	return credit, nil
}

func (u *referralUC) ListCredits(ctx context.Context, partnerID int64, limit int) ([]*model.ReferralCredit, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.credits.ListByPartner(ctx, repository.NoTX, partnerID, limit)
}
