package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsCreatedTotal,
		subscriptionsCancelledTotal,
		referralCreditsTotal,
		referralCreditAmountTotal,
		paymentsExpiredTotal,
	)
}

var (
	subscriptionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Entitlements materialized from settled payments, by payment type.",
		},
		[]string{"payment_type"},
	)

	subscriptionsCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_cancelled_total",
			Help: "Buyer-initiated cancellations, by entitlement kind.",
		},
		[]string{"kind"}, // one_time, recurring
	)

	referralCreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_credits_total",
			Help: "Referral credit attempts by result (credited/skipped/duplicate/error).",
		},
		[]string{"result"},
	)

	referralCreditAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_credit_amount_total",
			Help: "Sum of partner credits granted.",
		},
	)

	paymentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_expired_total",
			Help: "Pending payments closed by the expiry sweep.",
		},
	)
)

func IncSubscriptionCreated(paymentType string) {
	subscriptionsCreatedTotal.WithLabelValues(norm(paymentType)).Inc()
}

func IncSubscriptionCancelled(kind string) {
	subscriptionsCancelledTotal.WithLabelValues(norm(kind)).Inc()
}

func IncReferralCredit(result string) {
	referralCreditsTotal.WithLabelValues(norm(result)).Inc()
}

func AddReferralCreditAmount(amount float64) {
	referralCreditAmountTotal.Add(amount)
}

func IncPaymentsExpired(count int) {
	paymentsExpiredTotal.Add(float64(count))
}
