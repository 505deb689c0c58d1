package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
)

// User is a storefront customer identified by Telegram id.
// RefID points at the partner who referred them, if any.
type User struct {
	UserID         int64
	UserName       string
	RefID          *int64
	PartnerBalance decimal.Decimal
	JoinDate       time.Time
}

func NewUser(tgID int64, userName string, refID *int64) (*User, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if refID != nil && (*refID <= 0 || *refID == tgID) {
		refID = nil
	}
	return &User{
		UserID:         tgID,
		UserName:       strings.TrimPrefix(strings.TrimSpace(userName), "@"),
		RefID:          refID,
		PartnerBalance: decimal.Zero,
		JoinDate:       time.Now(),
	}, nil
}

// HasReferrer reports whether purchases by this user earn a partner credit.
func (u *User) HasReferrer() bool { return u != nil && u.RefID != nil && *u.RefID > 0 }

// Product is the catalog read model used by checkout. Price holds the raw
// catalog value: a flat number or a tariff table such as "1 - 150, 3 - 400".
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       string
	PaymentType string
	Category    string
}
