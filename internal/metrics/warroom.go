package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warroom_workflow_runs_total",
			Help: "Workflow runs by terminal status",
		},
		[]string{"status"},
	)

	StrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warroom_strategy_total",
			Help: "Resource strategies by source (provider or fallback)",
		},
		[]string{"source"},
	)

	DedupSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warroom_dedup_skipped_total",
			Help: "Incident candidates skipped because their fingerprint was already processed",
		},
	)

	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warroom_cache_errors_total",
			Help: "Cache backend errors absorbed by fail-open handling",
		},
		[]string{"op"},
	)

	PendingApprovals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "warroom_pending_approvals",
			Help: "Critical incidents currently held for war room approval",
		},
	)

	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warroom_approval_decisions_total",
			Help: "War room decisions by outcome",
		},
		[]string{"decision"},
	)

	ActivityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warroom_activity_failures_total",
			Help: "Failed Temporal activity attempts by activity and error type",
		},
		[]string{"activity", "type"},
	)
)
