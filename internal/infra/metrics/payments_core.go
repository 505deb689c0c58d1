package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		processorRequestsTotal,
		processorRequestDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment lifecycle transitions by status (initiated/success/failure/cancelled/expired).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Monetary value of settled payments, labelled by payment type.",
		},
		[]string{"payment_type"},
	)

	processorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_requests_total",
			Help: "Calls to the payment processor by operation and result.",
		},
		[]string{"op", "result"},
	)

	processorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_request_duration_seconds",
			Help:    "Latency of payment processor calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(paymentType string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(paymentType)).Add(amount)
}

func ObserveProcessorCall(op string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	processorRequestsTotal.WithLabelValues(norm(op), result).Inc()
	processorRequestDuration.WithLabelValues(norm(op)).Observe(seconds)
}
