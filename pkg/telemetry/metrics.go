// Package telemetry centralizes the Prometheus metrics and OpenTelemetry
// tracing helpers shared by the Branch Manager and Parallel Execution Engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BranchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "branches_created_total",
		Help:      "Number of branches created.",
	})
	BranchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "branches_completed_total",
		Help:      "Number of branches that reached Completed.",
	})
	BranchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "branches_failed_total",
		Help:      "Number of branches that reached Failed.",
	})
	BranchesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "branchctl",
		Name:      "branches_active",
		Help:      "Number of branches currently in a non-terminal status.",
	})

	MergeRequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "merge_requests_created_total",
		Help:      "Number of merge requests created.",
	})
	MergeRequestsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "merge_requests_committed_total",
		Help:      "Number of merge requests committed.",
	})
	MergeConflictsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "merge_conflicts_detected_total",
		Help:      "Number of per-path conflicts emitted across all merges.",
	})
	MergeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "branchctl",
		Name:      "merge_duration_seconds",
		Help:      "Wall-clock duration of execute_merge calls.",
		Buckets:   prometheus.DefBuckets,
	})

	AgentDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchctl",
		Name:      "agent_dispatches_total",
		Help:      "Number of agent dispatch attempts by outcome.",
	}, []string{"outcome"})

	BranchExecutionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "branchctl",
		Name:      "branch_execution_seconds",
		Help:      "Wall-clock duration of one branch's agent execution.",
		Buckets:   prometheus.DefBuckets,
	})
)

// RecordBranchCreated increments the branch-created counter and active gauge.
func RecordBranchCreated() {
	BranchesCreated.Inc()
	BranchesActive.Inc()
}

// RecordBranchTerminal records a branch reaching a terminal status.
func RecordBranchTerminal(failed bool) {
	BranchesActive.Dec()
	if failed {
		BranchesFailed.Inc()
	} else {
		BranchesCompleted.Inc()
	}
}

// RecordDispatch records one dispatch outcome ("accepted", "completed", "busy", "error", "unknown").
func RecordDispatch(outcome string) {
	AgentDispatches.WithLabelValues(outcome).Inc()
}
