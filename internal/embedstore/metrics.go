package embedstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnippetsStored tracks the number of snippets in the index.
	SnippetsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quotecheck",
			Subsystem: "embedstore",
			Name:      "snippets",
			Help:      "Number of snippets in the embedding index",
		},
	)

	// SearchDuration tracks how long embedding searches take.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quotecheck",
			Subsystem: "embedstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of embedding searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SnippetsSkipped counts snippets excluded from indexing or scoring.
	// Labels: reason (empty_embedding, inconsistent)
	SnippetsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotecheck",
			Subsystem: "embedstore",
			Name:      "snippets_skipped_total",
			Help:      "Total number of snippets skipped during indexing or search",
		},
		[]string{"reason"},
	)

	// VectorCacheLookups counts dequantized vector cache lookups.
	// Labels: result (hit, miss)
	VectorCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotecheck",
			Subsystem: "embedstore",
			Name:      "vector_cache_lookups_total",
			Help:      "Total number of dequantized vector cache lookups",
		},
		[]string{"result"},
	)
)
