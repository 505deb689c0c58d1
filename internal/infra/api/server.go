package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-storefront/internal/config"
	"telegram-storefront/internal/infra/security"
	"telegram-storefront/internal/usecase"
)

const maxBodyBytes = 1 << 20

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps are the use cases and guards the HTTP surface dispatches to.
// Limiter and Health are optional.
type Deps struct {
	Payments     usecase.PaymentUseCase
	Webhooks     usecase.WebhookUseCase
	Reconciler   usecase.ReconcileUseCase
	Cancellation usecase.CancellationUseCase
	Profiles     usecase.ProfileUseCase
	Referrals    usecase.ReferralUseCase

	InitData *security.InitDataVerifier
	Admin    *security.AdminAuth

	Limiter      RateLimiter
	CreateLimit  int
	CreateWindow time.Duration

	Health func(ctx context.Context) error
}

type Server struct {
	cfg      config.HTTPConfig
	deps     Deps
	validate *validator.Validate
	log      *zerolog.Logger
	server   *http.Server
}

func NewServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{cfg: cfg, deps: deps, validate: validator.New(), log: &l}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the chi router. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.cfg.RequestTimeout))
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", HeaderInitData},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/payment/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RequireInitData(s.deps.InitData, s.log))
		r.Post("/payment/create", s.handleCreatePayment)
		r.Post("/subscription/{id}/cancel", s.handleCancel)
		r.Get("/user", s.handleProfile)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleAdminLogin)
		r.Post("/logout", s.handleAdminLogout)
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(s.deps.Admin))
			r.Get("/payments", s.handleAdminPayments)
			r.Post("/payments/{invoiceId}/reconcile", s.handleAdminReconcile)
			r.Get("/partners/{id}/credits", s.handleAdminCredits)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
