package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

const profileEarningsLimit = 20

// Compile-time check
var _ ProfileUseCase = (*profileUC)(nil)

// Profile is the buyer's own view in the mini-app.
type Profile struct {
	User                   *model.User
	Subscriptions          []*model.OneTimeSubscription
	RecurringSubscriptions []*model.RecurringSubscription
	Card                   *model.SavedCardToken // nil when no card is saved
	ReferralPercent        decimal.Decimal
	Earnings               []*model.ReferralCredit
}

type ProfileUseCase interface {
	Profile(ctx context.Context, buyerID int64) (*Profile, error)
}

type profileUC struct {
	users     repository.UserRepository
	oneTime   repository.OneTimeSubscriptionRepository
	recurring repository.RecurringSubscriptionRepository
	cards     repository.CardTokenRepository
	referrals ReferralUseCase
}

func NewProfileUseCase(
	users repository.UserRepository,
	oneTime repository.OneTimeSubscriptionRepository,
	recurring repository.RecurringSubscriptionRepository,
	cards repository.CardTokenRepository,
	referrals ReferralUseCase,
) *profileUC {
	return &profileUC{users: users, oneTime: oneTime, recurring: recurring, cards: cards, referrals: referrals}
}

func (u *profileUC) Profile(ctx context.Context, buyerID int64) (*Profile, error) {
	user, err := u.users.FindByTelegramID(ctx, repository.NoTX, buyerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	subs, err := u.oneTime.ListByUser(ctx, repository.NoTX, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	recurring, err := u.recurring.ListByUser(ctx, repository.NoTX, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring subscriptions: %w", err)
	}
	card, err := u.cards.FindByUser(ctx, repository.NoTX, buyerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load saved card: %w", err)
		}
		card = nil
	}
	earnings, err := u.referrals.ListCredits(ctx, buyerID, profileEarningsLimit)
	if err != nil {
		return nil, fmt.Errorf("list referral credits: %w", err)
	}
	return &Profile{
		User:                   user,
		Subscriptions:          subs,
		RecurringSubscriptions: recurring,
		Card:                   card,
		ReferralPercent:        u.referrals.Percent(ctx),
		Earnings:               earnings,
	}, nil
}
