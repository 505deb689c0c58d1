package repository

import (
	"context"

	"telegram-storefront/internal/domain/model"
)

type CardTokenRepository interface {
	// Upsert replaces any token stored for the same user.
	Upsert(ctx context.Context, tx Tx, c *model.SavedCardToken) error
	FindByUser(ctx context.Context, tx Tx, userID int64) (*model.SavedCardToken, error)
}
