package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/metrics"
)

type adminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", "invalid_body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required", "invalid_params")
		return
	}
	if err := s.deps.Admin.CheckCredentials(req.Username, req.Password); err != nil {
		metrics.IncAdminLogin("unauthorized")
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "unauthorized")
		return
	}
	if _, err := s.deps.Admin.Mint(w); err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("mint admin session")
		writeError(w, http.StatusInternalServerError, "Login failed", "internal_error")
		return
	}
	metrics.IncAdminLogin("authorized")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Admin.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type paymentView struct {
	PaymentID   string    `json:"paymentId"`
	InvoiceID   string    `json:"invoiceId"`
	UserID      int64     `json:"userId"`
	ProductID   int64     `json:"productId"`
	Months      int       `json:"months"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	PaymentType string    `json:"paymentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.ParsePaymentStatus(q.Get("status"))
	if status != "" && status != model.PaymentStatusPending && !status.IsTerminal() {
		writeError(w, http.StatusBadRequest, "Unknown status", "invalid_params")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	rows, err := s.deps.Payments.ListRecent(r.Context(), status, limit)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("list payments failed")
		writeError(w, http.StatusInternalServerError, "Failed to list payments", "internal_error")
		return
	}
	out := make([]paymentView, 0, len(rows))
	for _, p := range rows {
		out = append(out, paymentView{
			PaymentID:   p.PaymentID,
			InvoiceID:   p.InvoiceID,
			UserID:      p.UserID,
			ProductID:   p.ProductID,
			Months:      p.Months,
			Amount:      money(p.Amount),
			Status:      string(p.Status),
			PaymentType: string(p.PaymentType),
			CreatedAt:   p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceId")
	ctx := logging.WithInvoiceID(r.Context(), invoiceID)

	outcome, err := s.deps.Reconciler.ReconcileInvoice(ctx, invoiceID)
	if err != nil {
		l := logging.With(ctx, s.log)
		l.Warn().Err(err).Msg("manual reconcile failed")
		var pe *domain.ProcessorError
		switch {
		case errors.As(err, &pe):
			writeError(w, http.StatusBadGateway, pe.Error(), "processor_error")
		case errors.Is(err, domain.ErrBadRequest):
			writeError(w, http.StatusBadRequest, "Invoice id required", "invalid_params")
		default:
			writeError(w, http.StatusInternalServerError, "Reconcile failed", "internal_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invoiceId": invoiceID, "outcome": string(outcome)})
}

func (s *Server) handleAdminCredits(w http.ResponseWriter, r *http.Request) {
	partnerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || partnerID < 1 {
		writeError(w, http.StatusBadRequest, "Invalid partner id", "invalid_params")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	credits, err := s.deps.Referrals.ListCredits(r.Context(), partnerID, limit)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Int64("partner_id", partnerID).Msg("list credits failed")
		writeError(w, http.StatusInternalServerError, "Failed to list credits", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": earningViews(credits)})
}
