package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

var _ repository.PendingTokenizationRepository = (*tokenizationRepo)(nil)

type tokenizationRepo struct{ pool *pgxpool.Pool }

func NewTokenizationRepo(pool *pgxpool.Pool) *tokenizationRepo {
	return &tokenizationRepo{pool: pool}
}

func scanTokenization(row pgx.Row) (*model.PendingTokenization, error) {
	t := &model.PendingTokenization{}
	if err := row.Scan(&t.LocalPaymentID, &t.InvoiceID, &t.WalletID, &t.PaymentType, &t.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return t, nil
}

func (r *tokenizationRepo) Save(ctx context.Context, tx repository.Tx, t *model.PendingTokenization) error {
	const q = `
INSERT INTO pending_tokenizations (local_payment_id, invoice_id, wallet_id, payment_type, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (local_payment_id) DO UPDATE SET invoice_id=$2, wallet_id=$3, payment_type=$4;`
	if _, err := execSQL(ctx, r.pool, tx, q, t.LocalPaymentID, t.InvoiceID, t.WalletID, t.PaymentType, t.CreatedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *tokenizationRepo) FindByLocalPaymentID(ctx context.Context, tx repository.Tx, localPaymentID string) (*model.PendingTokenization, error) {
	const q = `SELECT local_payment_id, invoice_id, wallet_id, payment_type, created_at FROM pending_tokenizations WHERE local_payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, localPaymentID)
	if err != nil {
		return nil, err
	}
	return scanTokenization(row)
}

func (r *tokenizationRepo) FindByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.PendingTokenization, error) {
	const q = `SELECT local_payment_id, invoice_id, wallet_id, payment_type, created_at FROM pending_tokenizations WHERE invoice_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanTokenization(row)
}

func (r *tokenizationRepo) ListCreatedBetween(ctx context.Context, tx repository.Tx, from, to time.Time, limit int) ([]*model.PendingTokenization, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT local_payment_id, invoice_id, wallet_id, payment_type, created_at FROM pending_tokenizations
WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, from, to, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PendingTokenization
	for rows.Next() {
		t, err := scanTokenization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *tokenizationRepo) Delete(ctx context.Context, tx repository.Tx, localPaymentID string) error {
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM pending_tokenizations WHERE local_payment_id=$1;`, localPaymentID); err != nil {
		return mapExecErr(err)
	}
	return nil
}
