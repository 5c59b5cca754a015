package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		callbackRequests,
		callbackDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transactions by final status (paid/failed/expired).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_irr_total",
			Help: "Total monetary value of paid transactions, labeled by purpose.",
		},
		[]string{"purpose"},
	)

	// Count of callback invocations by result and bounded reason.
	// result: ok|fail
	// reason (fail only): missing_track_id|not_found|verify_error|unknown
	callbackRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_requests_total",
			Help: "Count of gateway callback invocations by result and reason.",
		},
		[]string{"result", "reason"},
	)

	callbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Duration of the callback handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(purpose string, amountIRR int64) {
	paymentsRevenueTotal.WithLabelValues(norm(purpose)).Add(float64(amountIRR))
}

func IncCallback(result, reason string) {
	callbackRequests.WithLabelValues(norm(result), norm(reason)).Inc()
}

func ObserveCallbackDuration(result string, seconds float64) {
	callbackDuration.WithLabelValues(norm(result)).Observe(seconds)
}
