package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayCalls, gatewayCallDuration)
}

var (
	// outcome: ok|error|invalid_response
	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Payment gateway API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Payment gateway round-trip duration including retries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"endpoint"},
	)
)

func ObserveGatewayCall(endpoint, outcome string, d time.Duration) {
	gatewayCalls.WithLabelValues(norm(endpoint), norm(outcome)).Inc()
	gatewayCallDuration.WithLabelValues(norm(endpoint)).Observe(d.Seconds())
}
