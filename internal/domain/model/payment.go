package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // invoice created, awaiting processor outcome
	PaymentStatusSuccess   PaymentStatus = "success"   // confirmed by processor; never mutated again
	PaymentStatusFailure   PaymentStatus = "failure"   // rejected by processor
	PaymentStatusCancelled PaymentStatus = "cancelled" // cancelled at the processor
	PaymentStatusExpired   PaymentStatus = "expired"   // invoice validity elapsed
)

// ParsePaymentStatus normalizes a processor status string. Unknown values are
// returned lowercased so callers can log them.
func ParsePaymentStatus(s string) PaymentStatus {
	return PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
}

// IsTerminal reports whether no further transition is accepted.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailure, PaymentStatusCancelled, PaymentStatusExpired:
		return true
	}
	return false
}

// IsUnsuccessful is true for the terminal states that carry no entitlement.
func (s PaymentStatus) IsUnsuccessful() bool {
	return s == PaymentStatusFailure || s == PaymentStatusCancelled || s == PaymentStatusExpired
}

type PaymentType string

const (
	PaymentTypeOneTime      PaymentType = "one_time"
	PaymentTypeSubscription PaymentType = "subscription"
)

// PaymentTypeForProduct maps the catalog payment_type column onto a checkout flow.
// "subscription" and "recurring" products are sold with card tokenization.
func PaymentTypeForProduct(productPaymentType string) PaymentType {
	switch strings.ToLower(strings.TrimSpace(productPaymentType)) {
	case "subscription", "recurring":
		return PaymentTypeSubscription
	default:
		return PaymentTypeOneTime
	}
}

// PendingPayment is one checkout attempt correlated with a processor invoice.
type PendingPayment struct {
	PaymentID   string // local id, e.g. order_<buyer>_<ulid>
	InvoiceID   string // processor invoice id, unique
	UserID      int64  // buyer telegram id
	ProductID   int64
	Months      int
	Amount      decimal.Decimal // major currency units
	Status      PaymentStatus
	PaymentType PaymentType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPendingPayment(paymentID, invoiceID string, userID, productID int64, months int, amount decimal.Decimal, pt PaymentType) (*PendingPayment, error) {
	if paymentID == "" || invoiceID == "" || userID <= 0 || productID <= 0 || months <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidPrice
	}
	if pt != PaymentTypeSubscription {
		pt = PaymentTypeOneTime
	}
	now := time.Now()
	return &PendingPayment{
		PaymentID:   paymentID,
		InvoiceID:   invoiceID,
		UserID:      userID,
		ProductID:   productID,
		Months:      months,
		Amount:      amount,
		Status:      PaymentStatusPending,
		PaymentType: pt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PendingTokenization maps a tokenized checkout to the wallet id issued for it.
// The row is removed once the recurring subscription exists.
type PendingTokenization struct {
	LocalPaymentID string
	InvoiceID      string
	WalletID       string
	PaymentType    PaymentType
	CreatedAt      time.Time
}
