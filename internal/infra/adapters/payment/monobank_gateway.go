package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/config"
	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/infra/metrics"
)

var _ adapter.PaymentProcessor = (*MonobankGateway)(nil)

const (
	opCreateInvoice = "monobank.create_invoice"
	opInvoiceStatus = "monobank.invoice_status"
)

// MonobankGateway implements adapter.PaymentProcessor against the Monobank
// acquiring API (invoice create + invoice status).
type MonobankGateway struct {
	token    string
	baseURL  string
	currency int
	validity time.Duration
	http     *baseClient
}

func NewMonobankGateway(cfg config.MonobankConfig, opts ...baseClientOption) (*MonobankGateway, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.monobank.ua/"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid monobank base url: %w", err)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ccy := cfg.Currency
	if ccy == 0 {
		ccy = 980
	}
	return &MonobankGateway{
		token:    strings.TrimSpace(cfg.Token),
		baseURL:  base,
		currency: ccy,
		validity: cfg.InvoiceValidity,
		http:     newBaseClient(&http.Client{Timeout: timeout}, "monobank", opts...),
	}, nil
}

func (g *MonobankGateway) Name() string { return "monobank" }

type monoBasketItem struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
	Sum  int64  `json:"sum"`
	Code string `json:"code"`
	Unit string `json:"unit"`
}

type monoPaymInfo struct {
	Reference   string           `json:"reference"`
	Destination string           `json:"destination"`
	Comment     string           `json:"comment,omitempty"`
	BasketOrder []monoBasketItem `json:"basketOrder"`
}

type monoSaveCard struct {
	SaveCard bool   `json:"saveCard"`
	WalletID string `json:"walletId"`
}

type monoCreateRequest struct {
	Amount           int64         `json:"amount"`
	Ccy              int           `json:"ccy"`
	MerchantPaymInfo monoPaymInfo  `json:"merchantPaymInfo"`
	RedirectURL      string        `json:"redirectUrl,omitempty"`
	Validity         int64         `json:"validity,omitempty"`
	PaymentType      string        `json:"paymentType,omitempty"`
	SaveCardData     *monoSaveCard `json:"saveCardData,omitempty"`
}

type monoCreateResponse struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

type monoStatusResponse struct {
	InvoiceID  string `json:"invoiceId"`
	Status     string `json:"status"`
	Reference  string `json:"reference"`
	WalletData *struct {
		CardToken string `json:"cardToken"`
		WalletID  string `json:"walletId"`
	} `json:"walletData"`
	PaymentInfo *struct {
		MaskedPan     string `json:"maskedPan"`
		PaymentSystem string `json:"paymentSystem"`
	} `json:"paymentInfo"`
}

// MinorUnits converts major currency units to kopiykas, half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateInvoice posts api/merchant/invoice/create. A WalletID on the request
// turns it into a tokenizing debit invoice.
func (g *MonobankGateway) CreateInvoice(ctx context.Context, in adapter.InvoiceRequest) (*adapter.Invoice, error) {
	if g.token == "" {
		return nil, &domain.ProcessorError{Op: opCreateInvoice, Message: "processor token is not configured"}
	}

	payload := monoCreateRequest{
		Amount: MinorUnits(in.Amount),
		Ccy:    g.currency,
		MerchantPaymInfo: monoPaymInfo{
			Reference:   in.Reference,
			Destination: in.Description,
			Comment:     in.Description,
		},
		RedirectURL: in.RedirectURL,
	}
	for _, it := range in.Basket {
		payload.MerchantPaymInfo.BasketOrder = append(payload.MerchantPaymInfo.BasketOrder, monoBasketItem{
			Name: it.Name,
			Qty:  it.Qty,
			Sum:  MinorUnits(it.Sum),
			Code: it.Code,
			Unit: it.Unit,
		})
	}
	if in.WalletID != "" {
		validity := g.validity
		if validity <= 0 {
			validity = time.Hour
		}
		payload.Validity = int64(validity / time.Second)
		payload.PaymentType = "debit"
		payload.SaveCardData = &monoSaveCard{SaveCard: true, WalletID: in.WalletID}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.ProcessorError{Op: opCreateInvoice, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"api/merchant/invoice/create", bytes.NewReader(b))
	if err != nil {
		return nil, &domain.ProcessorError{Op: opCreateInvoice, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", g.token)

	var out monoCreateResponse
	if err := g.call(opCreateInvoice, req, &out); err != nil {
		return nil, err
	}
	if out.InvoiceID == "" || out.PageURL == "" {
		return nil, &domain.ProcessorError{Op: opCreateInvoice, Status: http.StatusOK, Message: "response without invoiceId/pageUrl"}
	}
	return &adapter.Invoice{InvoiceID: out.InvoiceID, PageURL: out.PageURL}, nil
}

// InvoiceStatus reads api/merchant/invoice/status. It is safe to retry.
func (g *MonobankGateway) InvoiceStatus(ctx context.Context, invoiceID string) (*adapter.InvoiceStatus, error) {
	if g.token == "" {
		return nil, &domain.ProcessorError{Op: opInvoiceStatus, Message: "processor token is not configured"}
	}
	if invoiceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	u := g.baseURL + "api/merchant/invoice/status?invoiceId=" + url.QueryEscape(invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.ProcessorError{Op: opInvoiceStatus, Message: err.Error()}
	}
	req.Header.Set("X-Token", g.token)

	var out monoStatusResponse
	if err := g.call(opInvoiceStatus, req, &out); err != nil {
		return nil, err
	}
	st := &adapter.InvoiceStatus{
		InvoiceID: out.InvoiceID,
		Status:    out.Status,
		Reference: out.Reference,
	}
	if st.InvoiceID == "" {
		st.InvoiceID = invoiceID
	}
	if out.WalletData != nil {
		st.CardToken = out.WalletData.CardToken
		st.WalletID = out.WalletData.WalletID
	}
	if out.PaymentInfo != nil {
		st.MaskedPan = out.PaymentInfo.MaskedPan
		st.PaymentSystem = out.PaymentInfo.PaymentSystem
	}
	return st, nil
}

func (g *MonobankGateway) call(op string, req *http.Request, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveProcessorCall(op, err == nil, time.Since(start).Seconds()) }()

	resp, err := g.http.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.ProcessorError{Op: op, Status: resp.StatusCode, Message: "read body: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ProcessorError{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ProcessorError{Op: op, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
