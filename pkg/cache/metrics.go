package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_evictions_total",
			Help: "Total number of evicted cache entries by reason",
		},
		[]string{"reason"}, // "lazy", "sweep", "clear"
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_cache_entries",
			Help: "Current number of response cache entries",
		},
	)
)
