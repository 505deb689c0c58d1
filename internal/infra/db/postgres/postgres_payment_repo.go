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

var _ repository.PendingPaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `payment_id, invoice_id, user_id, product_id, months, amount, status, payment_type, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.PendingPayment, error) {
	p := &model.PendingPayment{}
	if err := row.Scan(&p.PaymentID, &p.InvoiceID, &p.UserID, &p.ProductID, &p.Months, &p.Amount, &p.Status, &p.PaymentType, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PendingPayment) error {
	const q = `
INSERT INTO pending_payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (payment_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.PaymentID, p.InvoiceID, p.UserID, p.ProductID, p.Months, p.Amount, p.Status, p.PaymentType, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *paymentRepo) FindByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.PendingPayment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM pending_payments WHERE invoice_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkSuccess is the at-most-once barrier: concurrent deliveries race on this
// statement and only one observes an affected row.
func (r *paymentRepo) MarkSuccess(ctx context.Context, tx repository.Tx, invoiceID string) (bool, error) {
	const q = `
UPDATE pending_payments
   SET status = 'success',
       updated_at = NOW()
 WHERE invoice_id = $1
   AND status <> 'success'`

	cmd, err := execSQL(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

// MarkTerminalIfPending atomically updates status only when current status is 'pending'.
func (r *paymentRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, invoiceID string, status model.PaymentStatus) (bool, error) {
	if !status.IsUnsuccessful() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE pending_payments
   SET status = $2,
       updated_at = NOW()
 WHERE invoice_id = $1
   AND status = 'pending'`

	cmd, err := execSQL(ctx, r.pool, tx, q, invoiceID, string(status))
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PendingPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM pending_payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PendingPayment, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const q = `SELECT ` + paymentColumns + ` FROM pending_payments WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, string(status), limit)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PendingPayment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PendingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
