// Package metrics exposes Prometheus collectors for the attractor network
// and the resonance router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lazypower/attractor/internal/engine"
)

var (
	basinCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attractor_basins",
		Help: "Number of basins registered in the network.",
	})

	conditionNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attractor_condition_number",
		Help: "Effective condition number of the weight matrix (+Inf when degenerate).",
	})

	capacityRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attractor_capacity_remaining",
		Help: "Remaining storage capacity in [0,1], 0 once the condition threshold is reached.",
	})

	storedPatterns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attractor_stored_patterns",
		Help: "Patterns superimposed on the weight matrix, counting reinforcements.",
	})

	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attractor_route_decisions_total",
		Help: "Routing decisions by zone and whether the oracle contributed.",
	}, []string{"zone", "oracle"})

	oracleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attractor_oracle_failures_total",
		Help: "Oracle calls that failed and fell back to the Hopfield score.",
	})

	transitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attractor_transition_suggestions_total",
		Help: "Decisions that suggested a different basin.",
	})

	reinforcements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attractor_reinforcements_total",
		Help: "Applied reinforcements by direction.",
	}, []string{"direction"})

	convergenceIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attractor_convergence_iterations",
		Help:    "Sweeps per convergence run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
	}, []string{"converged"})
)

// SetBasins records the registry size.
func SetBasins(n int) { basinCount.Set(float64(n)) }

// SetCapacity records a capacity report.
func SetCapacity(r engine.CapacityReport) {
	conditionNumber.Set(r.ConditionNumber)
	capacityRemaining.Set(r.CapacityRemaining)
	storedPatterns.Set(float64(r.StoredPatterns))
}

// RecordDecision counts one routing decision.
func RecordDecision(zone string, oracleUsed, transition bool) {
	decisions.WithLabelValues(zone, boolLabel(oracleUsed)).Inc()
	if transition {
		transitions.Inc()
	}
}

// OracleFailure counts a degraded oracle call.
func OracleFailure() { oracleFailures.Inc() }

// RecordReinforcement counts a reinforcement by the sign of its delta.
func RecordReinforcement(delta float64) {
	dir := "neutral"
	switch {
	case delta > 0:
		dir = "up"
	case delta < 0:
		dir = "down"
	}
	reinforcements.WithLabelValues(dir).Inc()
}

// ObserveConvergence records the length of one convergence run.
func ObserveConvergence(res engine.ConvergenceResult) {
	convergenceIterations.WithLabelValues(boolLabel(res.Converged)).Observe(float64(res.Iterations))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
