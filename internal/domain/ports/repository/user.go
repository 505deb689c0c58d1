package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	AddPartnerBalance(ctx context.Context, tx Tx, tgID int64, amount decimal.Decimal) error
}

// -----------------------------
// Catalog
// -----------------------------

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Product, error)
}

// -----------------------------
// Settings
// -----------------------------

// SettingsRepository reads the partner_settings key/value table.
type SettingsRepository interface {
	Get(ctx context.Context, tx Tx, key string) (string, error)
	Set(ctx context.Context, tx Tx, key, value string) error
}
