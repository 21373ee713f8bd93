// Package metrics exposes in-process Prometheus collectors for the
// companion core. The embedding application decides whether and where
// to serve them; nothing here opens a listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOps counts memory store operations by operation and status.
	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kokoro",
		Subsystem: "memory",
		Name:      "store_operations_total",
		Help:      "Memory store operations by operation and status.",
	}, []string{"op", "status"})

	// SearchDuration observes memory search latency in seconds.
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kokoro",
		Subsystem: "memory",
		Name:      "search_duration_seconds",
		Help:      "Memory search latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// AgentRuns counts orchestrator turns by terminal status.
	AgentRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kokoro",
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Agent turns by terminal status.",
	}, []string{"status"})

	// ToolExecutions counts tool executions by tool name and status.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kokoro",
		Subsystem: "agent",
		Name:      "tool_executions_total",
		Help:      "Tool executions by tool and status.",
	}, []string{"tool", "status"})
)

// ObserveStoreOp records one store operation outcome.
func ObserveStoreOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOps.WithLabelValues(op, status).Inc()
}
