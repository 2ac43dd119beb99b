// Package metrics exposes Prometheus collectors for the sync subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCycles counts completed sync cycles by outcome: ok, error, skipped.
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitsync",
		Name:      "sync_cycles_total",
		Help:      "Completed sync cycles by result.",
	}, []string{"result"})

	// SyncDuration observes wall-clock duration of full sync cycles.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "splitsync",
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync cycles.",
		Buckets:   prometheus.DefBuckets,
	})

	// PendingOperations tracks the current depth of the pending-operation queue.
	PendingOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "splitsync",
		Name:      "pending_operations",
		Help:      "Operations waiting to reach the remote system.",
	})

	// Operations counts dispatched queue operations by kind and result.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitsync",
		Name:      "operations_total",
		Help:      "Dispatched queue operations by kind and result.",
	}, []string{"kind", "result"})

	// AbandonedOperations counts operations dropped at the retry ceiling.
	AbandonedOperations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splitsync",
		Name:      "operations_abandoned_total",
		Help:      "Operations permanently dropped after exhausting retries.",
	})

	// FullPulls counts full pulls by trigger: empty_cache, forced, count_mismatch.
	FullPulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitsync",
		Name:      "full_pulls_total",
		Help:      "Full remote pulls by trigger reason.",
	}, []string{"reason"})
)
