package model

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
)

// DaysPerMonth is the fixed month length used for validity windows and billing cycles.
const DaysPerMonth = 30

// TermEnd returns start plus 30 days per month of term.
func TermEnd(start time.Time, months int) time.Time {
	return start.AddDate(0, 0, DaysPerMonth*months)
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled" // one-time grants
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"  // recurring agreements
)

// OneTimeSubscription is a time-boxed grant bought with a single payment.
// Expiry is implied by EndDate; the status column only records cancellation.
type OneTimeSubscription struct {
	ID          int64
	UserID      int64
	ProductID   int64
	ProductName string
	ProductType string
	Price       decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
	Status      SubscriptionStatus
	InvoiceID   string
	CreatedAt   time.Time
}

func NewOneTimeSubscription(p *PendingPayment, product *Product, now time.Time) (*OneTimeSubscription, error) {
	if p == nil || product == nil {
		return nil, domain.ErrInvalidArgument
	}
	return &OneTimeSubscription{
		UserID:      p.UserID,
		ProductID:   product.ID,
		ProductName: product.Name,
		ProductType: product.Category,
		Price:       p.Amount,
		StartDate:   now,
		EndDate:     TermEnd(now, p.Months),
		Status:      SubscriptionStatusActive,
		InvoiceID:   p.InvoiceID,
		CreatedAt:   now,
	}, nil
}

// Expired reports whether the grant window has elapsed at t.
func (s *OneTimeSubscription) Expired(t time.Time) bool {
	return !t.Before(s.EndDate)
}

// RecurringSubscription is an open-ended billing agreement charged against a saved card.
// NextPaymentDate and PaymentFailures are advanced by the external billing process.
type RecurringSubscription struct {
	ID              int64
	UserID          int64
	ProductID       int64
	ProductName     string
	Months          int
	Price           decimal.Decimal
	WalletID        string
	NextPaymentDate time.Time
	Status          SubscriptionStatus
	PaymentFailures int
	InvoiceID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewRecurringSubscription(p *PendingPayment, product *Product, walletID string, now time.Time) (*RecurringSubscription, error) {
	if p == nil || product == nil || walletID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &RecurringSubscription{
		UserID:          p.UserID,
		ProductID:       product.ID,
		ProductName:     product.Name,
		Months:          p.Months,
		Price:           p.Amount,
		WalletID:        walletID,
		NextPaymentDate: TermEnd(now, p.Months),
		Status:          SubscriptionStatusActive,
		InvoiceID:       p.InvoiceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
