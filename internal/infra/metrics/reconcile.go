package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(reconcileRuns, reconcileOutcomes)
}

var (
	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Reconciliation sweeps by result (completed/list_error/lock_busy).",
		},
		[]string{"result"},
	)

	// outcome: paid|cancelled|expired|already_processed|failed|skipped
	reconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Per-transaction reconciliation outcomes.",
		},
		[]string{"outcome"},
	)
)

func IncReconcileRun(result string) {
	reconcileRuns.WithLabelValues(norm(result)).Inc()
}

func IncReconcileOutcome(outcome string) {
	reconcileOutcomes.WithLabelValues(norm(outcome)).Inc()
}
