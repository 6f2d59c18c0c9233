package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tensorvault_cache_hits_total",
		Help: "Cache reads served from the cache storage",
	},
	[]string{"layer"},
)

var metricMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tensorvault_cache_misses_total",
		Help: "Cache reads that fell through to the next storage",
	},
	[]string{"layer"},
)

var metricEvictions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tensorvault_cache_evictions_total",
		Help: "Entries evicted to stay within the byte budget",
	},
	[]string{"layer"},
)

var metricWriteBacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tensorvault_cache_writebacks_total",
		Help: "Dirty entries persisted to the next storage",
	},
	[]string{"layer"},
)

var metricWriteBackBytes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tensorvault_cache_writeback_bytes_total",
		Help: "Bytes persisted to the next storage",
	},
	[]string{"layer"},
)
