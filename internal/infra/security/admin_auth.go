package security

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-storefront/internal/config"
)

const AdminCookieName = "admin_session"

var (
	ErrBadCredentials = errors.New("invalid admin credentials")
	ErrNoSession      = errors.New("missing admin session")
	ErrBadSession     = errors.New("invalid admin session")
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth checks the configured admin credentials and issues HS256 session
// cookies for the admin routes.
type AdminAuth struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

func NewAdminAuth(cfg config.AdminConfig) *AdminAuth {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AdminAuth{
		username: cfg.Username,
		password: cfg.Password,
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		secure:   cfg.SecureCookie,
		now:      time.Now,
	}
}

// Enabled is false when no admin password or signing secret is configured.
func (a *AdminAuth) Enabled() bool {
	return a.password != "" && len(a.secret) > 0
}

func (a *AdminAuth) CheckCredentials(username, password string) error {
	if !a.Enabled() {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}

// Mint signs a session token and sets it as an HttpOnly cookie.
func (a *AdminAuth) Mint(w http.ResponseWriter) (string, error) {
	now := a.now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   a.username,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, nil
}

func (a *AdminAuth) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ParseFromRequest accepts "Authorization: Bearer <jwt>" or the session cookie.
func (a *AdminAuth) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return a.parse(strings.TrimSpace(hdr[7:]))
	}
	if c, err := r.Cookie(AdminCookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, ErrNoSession
}

func (a *AdminAuth) parse(tok string) (*AdminClaims, error) {
	if !a.Enabled() {
		return nil, ErrBadSession
	}
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, ErrBadSession
	}
	return claims, nil
}
