package repository

import (
	"context"

	"telegram-storefront/internal/domain/model"
)

// OneTimeSubscriptionRepository is the port for time-boxed grants.
type OneTimeSubscriptionRepository interface {
	// Create inserts the grant and sets s.ID. It returns false when a grant
	// for the same invoice already exists.
	Create(ctx context.Context, tx Tx, s *model.OneTimeSubscription) (bool, error)
	// CancelOwned sets status=cancelled when id and owner match and the grant
	// is not cancelled yet. It returns the product name of the changed row.
	CancelOwned(ctx context.Context, tx Tx, id, userID int64) (productName string, changed bool, err error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.OneTimeSubscription, error)
}

// RecurringSubscriptionRepository is the port for billing agreements.
type RecurringSubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.RecurringSubscription) (bool, error)
	DeactivateOwned(ctx context.Context, tx Tx, id, userID int64) (productName string, changed bool, err error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.RecurringSubscription, error)
}
