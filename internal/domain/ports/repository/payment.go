package repository

import (
	"context"
	"time"

	"telegram-storefront/internal/domain/model"
)

// -----------------------------
// Pending payments
// -----------------------------

type PendingPaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PendingPayment) error
	FindByInvoiceID(ctx context.Context, tx Tx, invoiceID string) (*model.PendingPayment, error)
	// MarkSuccess flips the row to success. Only the call that changed the row gets true.
	MarkSuccess(ctx context.Context, tx Tx, invoiceID string) (bool, error)
	// MarkTerminalIfPending moves a pending row to failure/cancelled/expired.
	MarkTerminalIfPending(ctx context.Context, tx Tx, invoiceID string, status model.PaymentStatus) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PendingPayment, error)
	// ListRecent returns newest first; an empty status matches all.
	ListRecent(ctx context.Context, tx Tx, status model.PaymentStatus, limit int) ([]*model.PendingPayment, error)
}

// -----------------------------
// Pending tokenizations
// -----------------------------

type PendingTokenizationRepository interface {
	Save(ctx context.Context, tx Tx, t *model.PendingTokenization) error
	FindByLocalPaymentID(ctx context.Context, tx Tx, localPaymentID string) (*model.PendingTokenization, error)
	FindByInvoiceID(ctx context.Context, tx Tx, invoiceID string) (*model.PendingTokenization, error)
	// ListCreatedBetween returns rows with from <= created_at < to, oldest first.
	ListCreatedBetween(ctx context.Context, tx Tx, from, to time.Time, limit int) ([]*model.PendingTokenization, error)
	Delete(ctx context.Context, tx Tx, localPaymentID string) error
}
