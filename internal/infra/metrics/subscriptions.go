package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(subscriptionsActivated, subscriptionsExpired)
}

var (
	subscriptionsActivated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions activated or extended by a paid transaction.",
		},
		[]string{"plan_type"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions finished by the daily expiry sweep.",
		},
	)
)

func IncSubscriptionActivated(planType string) {
	subscriptionsActivated.WithLabelValues(norm(planType)).Inc()
}

func IncSubscriptionsExpired(n int) {
	subscriptionsExpired.Add(float64(n))
}
