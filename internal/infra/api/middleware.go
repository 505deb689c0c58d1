package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-storefront/internal/infra/logging"
	"telegram-storefront/internal/infra/security"
)

const (
	HeaderInitData  = "X-Telegram-Init-Data"
	HeaderRequestID = "X-Request-ID"
)

type Middleware func(http.Handler) http.Handler

// TraceID reuses an inbound X-Request-ID or issues a new one.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get(HeaderRequestID)
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			l := logging.With(r.Context(), logger)
			ev := l.Info()
			if ww.status >= http.StatusInternalServerError {
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("route", route).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, "Internal error", "internal_error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type ctxKey string

const ctxWebAppUser ctxKey = "webapp_user"

// RequireInitData authenticates mini-app calls. The verified Telegram user is
// the buyer for everything downstream.
func RequireInitData(v *security.InitDataVerifier, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := v.Verify(r.Header.Get(HeaderInitData))
			if err != nil {
				l := logging.With(r.Context(), logger)
				l.Debug().Err(err).Msg("init data rejected")
				writeError(w, http.StatusUnauthorized, "Unauthorized", "open_in_telegram")
				return
			}
			ctx := logging.WithTgID(r.Context(), user.ID)
			ctx = context.WithValue(ctx, ctxWebAppUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func webAppUser(ctx context.Context) *security.WebAppUser {
	u, _ := ctx.Value(ctxWebAppUser).(*security.WebAppUser)
	return u
}

func RequireAdmin(auth *security.AdminAuth) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.ParseFromRequest(r); err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
