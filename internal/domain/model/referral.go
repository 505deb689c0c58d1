package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReferralPercent applies when the partner_settings row is missing or unreadable.
var DefaultReferralPercent = decimal.NewFromInt(20)

// ReferralCredit is an append-only audit row for a partner rebate.
type ReferralCredit struct {
	ID             int64
	PartnerID      int64
	BuyerID        int64
	PurchaseAmount decimal.Decimal
	CreditAmount   decimal.Decimal
	Percent        decimal.Decimal
	ProductName    string
	PaymentType    PaymentType
	InvoiceID      string
	CreatedAt      time.Time
}

// ComputeReferralCredit returns amount*percent/100 rounded to one decimal place.
func ComputeReferralCredit(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(1)
}
