package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminLoginTotal, rateLimitedTotal) }

var (
	adminLoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_login_total",
			Help: "Admin console login attempts.",
		},
		[]string{"status"}, // authorized, unauthorized
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-buyer rate limiter.",
		},
		[]string{"route"},
	)
)

func IncAdminLogin(status string) {
	adminLoginTotal.WithLabelValues(norm(status)).Inc()
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
