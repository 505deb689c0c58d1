package repository

import (
	"context"

	"telegram-storefront/internal/domain/model"
)

type ReferralCreditRepository interface {
	// Append inserts the audit row and sets c.ID. It returns false when the
	// invoice was already credited.
	Append(ctx context.Context, tx Tx, c *model.ReferralCredit) (bool, error)
	ListByPartner(ctx context.Context, tx Tx, partnerID int64, limit int) ([]*model.ReferralCredit, error)
}
