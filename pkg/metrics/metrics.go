package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergesTotal counts merge attempts by terminal status.
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of person merge attempts by status",
		},
		[]string{"status"},
	)

	// MergeDuration observes end-to-end merge latency, commit included.
	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "merge_duration_seconds",
			Help:      "Duration of person merge operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// PreconditionRejections counts merges refused before any mutation.
	PreconditionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "precondition_rejections_total",
			Help:      "Total number of merges rejected by precondition checks",
		},
		[]string{"reason"},
	)

	// StrongMatchesRegenerated counts duplicate candidates recreated for
	// survivors after a merge.
	StrongMatchesRegenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "strong_matches_regenerated_total",
			Help:      "Total number of strong match candidates regenerated after merges",
		},
	)
)
