package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
)

// Compile-time check
var _ CancellationUseCase = (*cancellationUC)(nil)

type CancellationUseCase interface {
	// Cancel ends a subscription owned by buyerID. One-time grants are tried
	// first, then recurring agreements.
	Cancel(ctx context.Context, subscriptionID, buyerID int64) error
}

type cancellationUC struct {
	oneTime   repository.OneTimeSubscriptionRepository
	recurring repository.RecurringSubscriptionRepository
	users     repository.UserRepository
	notes     *Notifications
	log       *zerolog.Logger
}

func NewCancellationUseCase(
	oneTime repository.OneTimeSubscriptionRepository,
	recurring repository.RecurringSubscriptionRepository,
	users repository.UserRepository,
	notes *Notifications,
	logger *zerolog.Logger,
) *cancellationUC {
	l := logger.With().Str("component", "cancellation_uc").Logger()
	return &cancellationUC{oneTime: oneTime, recurring: recurring, users: users, notes: notes, log: &l}
}

func (u *cancellationUC) Cancel(ctx context.Context, subscriptionID, buyerID int64) error {
	if subscriptionID <= 0 || buyerID <= 0 {
		return domain.ErrInvalidParams
	}
	log := logging.With(ctx, u.log).With().Int64("subscription_id", subscriptionID).Logger()

	kind := "one_time"
	name, changed, err := u.oneTime.CancelOwned(ctx, repository.NoTX, subscriptionID, buyerID)
	if err != nil {
		return fmt.Errorf("cancel one-time subscription: %w", err)
	}
	if !changed {
		kind = "recurring"
		name, changed, err = u.recurring.DeactivateOwned(ctx, repository.NoTX, subscriptionID, buyerID)
		if err != nil {
			return fmt.Errorf("deactivate recurring subscription: %w", err)
		}
	}
	if !changed {
		return domain.ErrSubscriptionNotFound
	}

	metrics.IncSubscriptionCancelled(kind)
	log.Info().Str("kind", kind).Msg("subscription cancelled by buyer")

	buyer, err := u.users.FindByTelegramID(ctx, repository.NoTX, buyerID)
	if err != nil {
		buyer = &model.User{UserID: buyerID}
	}
	u.notes.subscriptionCancelled(ctx, buyer, name)
	return nil
}
