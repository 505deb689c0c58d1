package adapter

import (
	"context"
	"time"
)

// PaymentSucceededEvent is emitted after a confirmed payment was materialized.
type PaymentSucceededEvent struct {
	InvoiceID      string    `json:"invoice_id"`
	PaymentID      string    `json:"payment_id"`
	UserID         int64     `json:"user_id"`
	ProductID      int64     `json:"product_id"`
	PaymentType    string    `json:"payment_type"`
	Amount         string    `json:"amount"`
	Months         int       `json:"months"`
	Outcome        string    `json:"outcome"`
	SubscriptionID int64     `json:"subscription_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type EventPublisher interface {
	PublishPaymentSucceeded(ctx context.Context, ev PaymentSucceededEvent) error
	Close()
}
