package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// BasketItem is one itemized line shown on the processor checkout page.
type BasketItem struct {
	Name string
	Qty  int
	Sum  decimal.Decimal
	Code string
	Unit string
}

// InvoiceRequest describes a checkout. A non-empty WalletID asks the processor
// to tokenize the card under that wallet.
type InvoiceRequest struct {
	Amount      decimal.Decimal
	Description string
	Reference   string
	RedirectURL string
	Basket      []BasketItem
	WalletID    string
}

type Invoice struct {
	InvoiceID string
	PageURL   string
}

// InvoiceStatus is the processor view of an invoice. Card fields are empty
// when the processor did not tokenize (yet).
type InvoiceStatus struct {
	InvoiceID     string
	Status        string
	Reference     string
	CardToken     string
	WalletID      string
	MaskedPan     string
	PaymentSystem string
}

// PaymentProcessor is the hex port for the acquiring API.
type PaymentProcessor interface {
	Name() string
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (*InvoiceStatus, error)
}
