package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

var (
	_ repository.OneTimeSubscriptionRepository   = (*oneTimeSubRepo)(nil)
	_ repository.RecurringSubscriptionRepository = (*recurringSubRepo)(nil)
)

// -----------------------------
// One-time grants
// -----------------------------

type oneTimeSubRepo struct{ pool *pgxpool.Pool }

func NewOneTimeSubscriptionRepo(pool *pgxpool.Pool) *oneTimeSubRepo {
	return &oneTimeSubRepo{pool: pool}
}

func (r *oneTimeSubRepo) Create(ctx context.Context, tx repository.Tx, s *model.OneTimeSubscription) (bool, error) {
	const q = `
INSERT INTO one_time_subscriptions (user_id, product_id, product_name, product_type, price, start_date, end_date, status, invoice_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10)
ON CONFLICT (invoice_id) DO NOTHING
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, s.UserID, s.ProductID, s.ProductName, s.ProductType, s.Price, s.StartDate, s.EndDate, s.Status, s.InvoiceID, s.CreatedAt)
	if err != nil {
		return false, err
	}
	return scanInsertedID(row, &s.ID)
}

func (r *oneTimeSubRepo) CancelOwned(ctx context.Context, tx repository.Tx, id, userID int64) (string, bool, error) {
	const q = `
UPDATE one_time_subscriptions
   SET status = 'cancelled'
 WHERE id = $1 AND user_id = $2 AND status <> 'cancelled'
RETURNING product_name;`
	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return "", false, err
	}
	return scanChangedName(row)
}

func (r *oneTimeSubRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.OneTimeSubscription, error) {
	const q = `
SELECT id, user_id, product_id, product_name, product_type, price, start_date, end_date, status, COALESCE(invoice_id,''), created_at
  FROM one_time_subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.OneTimeSubscription
	for rows.Next() {
		s := &model.OneTimeSubscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProductID, &s.ProductName, &s.ProductType, &s.Price, &s.StartDate, &s.EndDate, &s.Status, &s.InvoiceID, &s.CreatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// -----------------------------
// Recurring agreements
// -----------------------------

type recurringSubRepo struct{ pool *pgxpool.Pool }

func NewRecurringSubscriptionRepo(pool *pgxpool.Pool) *recurringSubRepo {
	return &recurringSubRepo{pool: pool}
}

func (r *recurringSubRepo) Create(ctx context.Context, tx repository.Tx, s *model.RecurringSubscription) (bool, error) {
	const q = `
INSERT INTO recurring_subscriptions (user_id, product_id, product_name, months, price, wallet_id, next_payment_date, status, payment_failures, invoice_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12)
ON CONFLICT (invoice_id) DO NOTHING
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, s.UserID, s.ProductID, s.ProductName, s.Months, s.Price, s.WalletID, s.NextPaymentDate, s.Status, s.PaymentFailures, s.InvoiceID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, err
	}
	return scanInsertedID(row, &s.ID)
}

func (r *recurringSubRepo) DeactivateOwned(ctx context.Context, tx repository.Tx, id, userID int64) (string, bool, error) {
	const q = `
UPDATE recurring_subscriptions
   SET status = 'inactive', updated_at = NOW()
 WHERE id = $1 AND user_id = $2 AND status <> 'inactive'
RETURNING product_name;`
	row, err := pickRow(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return "", false, err
	}
	return scanChangedName(row)
}

func (r *recurringSubRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.RecurringSubscription, error) {
	const q = `
SELECT id, user_id, product_id, product_name, months, price, wallet_id, next_payment_date, status, payment_failures, COALESCE(invoice_id,''), created_at, updated_at
  FROM recurring_subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.RecurringSubscription
	for rows.Next() {
		s := &model.RecurringSubscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProductID, &s.ProductName, &s.Months, &s.Price, &s.WalletID, &s.NextPaymentDate, &s.Status, &s.PaymentFailures, &s.InvoiceID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// scanInsertedID reads the RETURNING id of an INSERT .. ON CONFLICT DO NOTHING.
// No row means the conflict path was taken.
func scanInsertedID(row pgx.Row, id *int64) (bool, error) {
	if err := row.Scan(id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, mapExecErr(err)
	}
	return true, nil
}

func scanChangedName(row pgx.Row) (string, bool, error) {
	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, mapExecErr(err)
	}
	return name, true, nil
}
