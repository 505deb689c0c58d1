package payment

import (
	"context"
	"fmt"
	"sync"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/ports/adapter"
)

var _ adapter.PaymentProcessor = (*NoopPaymentProcessor)(nil)

// NoopPaymentProcessor is an in-memory processor for local runs without a
// Monobank token. Every invoice stays "processing" until SetStatus is called.
type NoopPaymentProcessor struct {
	mu       sync.Mutex
	seq      int64
	invoices map[string]*adapter.InvoiceStatus
}

func NewNoopPaymentProcessor() *NoopPaymentProcessor {
	return &NoopPaymentProcessor{invoices: make(map[string]*adapter.InvoiceStatus)}
}

func (g *NoopPaymentProcessor) Name() string { return "noop" }

func (g *NoopPaymentProcessor) CreateInvoice(ctx context.Context, req adapter.InvoiceRequest) (*adapter.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-%d", g.seq)
	g.invoices[id] = &adapter.InvoiceStatus{
		InvoiceID: id,
		Status:    "processing",
		Reference: req.Reference,
		WalletID:  req.WalletID,
	}
	return &adapter.Invoice{InvoiceID: id, PageURL: "https://example.test/pay/" + id}, nil
}

func (g *NoopPaymentProcessor) InvoiceStatus(ctx context.Context, invoiceID string) (*adapter.InvoiceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.invoices[invoiceID]
	if !ok {
		return nil, &domain.ProcessorError{Op: "noop.invoice_status", Status: 404, Message: "invoice not found"}
	}
	cp := *st
	return &cp, nil
}

// SetStatus moves a fake invoice forward. A non-empty cardToken marks the card as saved.
func (g *NoopPaymentProcessor) SetStatus(invoiceID, status, cardToken string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.invoices[invoiceID]; ok {
		st.Status = status
		if cardToken != "" {
			st.CardToken = cardToken
			st.MaskedPan = "444403******1902"
			st.PaymentSystem = "visa"
		}
	}
}
