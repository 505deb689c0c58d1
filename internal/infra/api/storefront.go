package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
	"telegram-storefront/internal/infra/redis"
	"telegram-storefront/internal/usecase"
)

type createPaymentRequest struct {
	ProductID int64 `json:"productId" validate:"gte=1"`
	Months    int   `json:"months" validate:"gte=1"`
}

type createPaymentResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	PageURL     string `json:"pageUrl"`
	InvoiceID   string `json:"invoiceId"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyer := webAppUser(ctx)
	log := logging.With(ctx, s.log)

	if s.deps.Limiter != nil {
		ok, err := s.deps.Limiter.Allow(ctx, redis.PaymentCreateKey(buyer.ID), s.deps.CreateLimit, s.deps.CreateWindow)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRateLimited("payment_create")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "rate_limited")
			return
		}
	}

	var req createPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", "invalid_body")
		return
	}
	if req.Months == 0 {
		req.Months = 1
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid productId or months", "invalid_params")
		return
	}

	intent, err := s.deps.Payments.CreatePayment(ctx, buyer.ID, req.ProductID, req.Months)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found", "user_not_found")
		return
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found", "not_found")
		return
	case errors.Is(err, domain.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "Invalid productId or months", "invalid_params")
		return
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "Invalid price for selected period", "invalid_price")
		return
	default:
		log.Error().Err(err).Int64("product_id", req.ProductID).Msg("payment create failed")
		writeError(w, http.StatusInternalServerError, createFailureMessage(err), "payment_create_failed")
		return
	}

	writeJSON(w, http.StatusOK, createPaymentResponse{
		CheckoutURL: intent.CheckoutURL,
		PageURL:     intent.CheckoutURL,
		InvoiceID:   intent.InvoiceID,
	})
}

// createFailureMessage passes the processor's own message through to the buyer.
func createFailureMessage(err error) string {
	var pe *domain.ProcessorError
	if errors.As(err, &pe) {
		if msg := strings.TrimSpace(pe.Message); msg != "" {
			return msg
		}
		return pe.Error()
	}
	return "Payment creation failed"
}

// webhookBody is the processor's status callback payload.
type webhookBody struct {
	InvoiceID  string `json:"invoiceId"`
	Status     string `json:"status"`
	Reference  string `json:"reference"`
	WalletData struct {
		CardToken string `json:"cardToken"`
		WalletID  string `json:"walletId"`
	} `json:"walletData"`
	PaymentInfo struct {
		MaskedPan     string `json:"maskedPan"`
		PaymentSystem string `json:"paymentSystem"`
	} `json:"paymentInfo"`
}

// handleWebhook acknowledges every well-formed report. Outcomes, including
// internal errors, are logged rather than surfaced to the processor.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body webhookBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil || body.InvoiceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"ok": false})
		return
	}

	ctx := logging.WithInvoiceID(r.Context(), body.InvoiceID)
	outcome, err := s.deps.Webhooks.Handle(ctx, usecase.Notification{
		InvoiceID:     body.InvoiceID,
		Status:        body.Status,
		Reference:     body.Reference,
		CardToken:     body.WalletData.CardToken,
		WalletID:      body.WalletData.WalletID,
		MaskedPan:     body.PaymentInfo.MaskedPan,
		PaymentSystem: body.PaymentInfo.PaymentSystem,
	})
	log := logging.With(ctx, s.log)
	if err != nil {
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("webhook handling failed")
	} else {
		log.Debug().Str("outcome", string(outcome)).Msg("webhook handled")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	buyer := webAppUser(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid subscription id", "invalid_params")
		return
	}

	err = s.deps.Cancellation.Cancel(r.Context(), id, buyer.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		writeError(w, http.StatusNotFound, "Subscription not found or already cancelled", "not_found")
	case errors.Is(err, domain.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "Invalid subscription id", "invalid_params")
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Int64("subscription_id", id).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "Cancellation failed", "cancel_failed")
	}
}

type subscriptionView struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName"`
	Price       string    `json:"price"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Status      string    `json:"status"`
	Expired     bool      `json:"expired"`
}

type recurringView struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"productId"`
	ProductName     string    `json:"productName"`
	Months          int       `json:"months"`
	Price           string    `json:"price"`
	NextPaymentDate time.Time `json:"nextPaymentDate"`
	Status          string    `json:"status"`
}

type cardView struct {
	MaskedCard string `json:"maskedCard"`
	CardType   string `json:"cardType"`
}

type earningView struct {
	BuyerID      int64     `json:"buyerId"`
	ProductName  string    `json:"productName"`
	Amount       string    `json:"amount"`
	CreditAmount string    `json:"creditAmount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type profileResponse struct {
	UserID                 int64              `json:"userId"`
	UserName               string             `json:"userName"`
	FirstName              string             `json:"firstName,omitempty"`
	LastName               string             `json:"lastName,omitempty"`
	DaysOnService          *int               `json:"daysOnService"`
	Subscriptions          []subscriptionView `json:"subscriptions"`
	RecurringSubscriptions []recurringView    `json:"recurringSubscriptions"`
	Card                   *cardView          `json:"card"`
	Referral               struct {
		PartnerBalance  string        `json:"partnerBalance"`
		ReferralPercent string        `json:"referralPercent"`
		EarningsHistory []earningView `json:"earningsHistory"`
	} `json:"referral"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// handleProfile returns the buyer's own view. Card tokens never leave the server.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	buyer := webAppUser(r.Context())
	prof, err := s.deps.Profiles.Profile(r.Context(), buyer.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found", "user_not_found")
			return
		}
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("load profile failed")
		writeError(w, http.StatusInternalServerError, "Profile unavailable", "internal_error")
		return
	}

	now := time.Now()
	resp := profileResponse{
		UserID:                 prof.User.UserID,
		UserName:               prof.User.UserName,
		FirstName:              buyer.FirstName,
		LastName:               buyer.LastName,
		Subscriptions:          make([]subscriptionView, 0, len(prof.Subscriptions)),
		RecurringSubscriptions: make([]recurringView, 0, len(prof.RecurringSubscriptions)),
	}
	if !prof.User.JoinDate.IsZero() {
		days := int(math.Floor(now.Sub(prof.User.JoinDate).Hours() / 24))
		resp.DaysOnService = &days
	}
	for _, sub := range prof.Subscriptions {
		resp.Subscriptions = append(resp.Subscriptions, subscriptionView{
			ID:          sub.ID,
			ProductID:   sub.ProductID,
			ProductName: sub.ProductName,
			Price:       money(sub.Price),
			StartDate:   sub.StartDate,
			EndDate:     sub.EndDate,
			Status:      string(sub.Status),
			Expired:     sub.Expired(now),
		})
	}
	for _, sub := range prof.RecurringSubscriptions {
		resp.RecurringSubscriptions = append(resp.RecurringSubscriptions, recurringView{
			ID:              sub.ID,
			ProductID:       sub.ProductID,
			ProductName:     sub.ProductName,
			Months:          sub.Months,
			Price:           money(sub.Price),
			NextPaymentDate: sub.NextPaymentDate,
			Status:          string(sub.Status),
		})
	}
	if prof.Card != nil {
		resp.Card = &cardView{MaskedCard: prof.Card.MaskedCard, CardType: prof.Card.CardType}
	}
	resp.Referral.PartnerBalance = money(prof.User.PartnerBalance)
	resp.Referral.ReferralPercent = prof.ReferralPercent.String()
	resp.Referral.EarningsHistory = earningViews(prof.Earnings)

	writeJSON(w, http.StatusOK, resp)
}

func earningViews(credits []*model.ReferralCredit) []earningView {
	out := make([]earningView, 0, len(credits))
	for _, c := range credits {
		out = append(out, earningView{
			BuyerID:      c.BuyerID,
			ProductName:  c.ProductName,
			Amount:       money(c.PurchaseAmount),
			CreditAmount: money(c.CreditAmount),
			CreatedAt:    c.CreatedAt,
		})
	}
	return out
}
