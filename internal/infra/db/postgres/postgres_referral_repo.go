package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

var _ repository.ReferralCreditRepository = (*referralRepo)(nil)

type referralRepo struct{ pool *pgxpool.Pool }

func NewReferralRepo(pool *pgxpool.Pool) *referralRepo {
	return &referralRepo{pool: pool}
}

func (r *referralRepo) Append(ctx context.Context, tx repository.Tx, c *model.ReferralCredit) (bool, error) {
	const q = `
INSERT INTO referral_credits (partner_id, buyer_id, purchase_amount, credit_amount, percent, product_name, payment_type, invoice_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9)
ON CONFLICT (invoice_id) DO NOTHING
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, c.PartnerID, c.BuyerID, c.PurchaseAmount, c.CreditAmount, c.Percent, c.ProductName, c.PaymentType, c.InvoiceID, c.CreatedAt)
	if err != nil {
		return false, err
	}
	return scanInsertedID(row, &c.ID)
}

func (r *referralRepo) ListByPartner(ctx context.Context, tx repository.Tx, partnerID int64, limit int) ([]*model.ReferralCredit, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, partner_id, buyer_id, purchase_amount, credit_amount, percent, product_name, payment_type, COALESCE(invoice_id,''), created_at
  FROM referral_credits WHERE partner_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, partnerID, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.ReferralCredit
	for rows.Next() {
		c := &model.ReferralCredit{}
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.BuyerID, &c.PurchaseAmount, &c.CreditAmount, &c.Percent, &c.ProductName, &c.PaymentType, &c.InvoiceID, &c.CreatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, c)
	}
	return out, nil
}
