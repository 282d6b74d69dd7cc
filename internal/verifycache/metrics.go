package verifycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lookups counts cache reads.
	// Labels: cache, result (hit, miss)
	lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotecheck",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups",
		},
		[]string{"cache", "result"},
	)

	// evictions counts entries removed by batch eviction.
	evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotecheck",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache entries evicted",
		},
		[]string{"cache"},
	)

	// entriesGauge tracks the current entry count.
	entriesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quotecheck",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries currently cached",
		},
		[]string{"cache"},
	)
)
