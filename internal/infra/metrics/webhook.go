package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookDuration,
		notificationsTotal,
	)
}

var (
	// status is the processor status as received; outcome is what the reconciler did
	// (materialized, duplicate, marked, ignored, orphan, error).
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor notifications by reported status and reconciliation outcome.",
		},
		[]string{"status", "outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Time spent reconciling one processor notification.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)

	// kind: user_success|admin_sale|partner_credit|admin_cancel
	// status: sent|failed|dropped
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Telegram notifications by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)
)

func IncWebhookEvent(status, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(status), norm(outcome)).Inc()
}

func ObserveWebhook(outcome string, seconds float64) {
	webhookDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
