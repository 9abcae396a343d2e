package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts requests served from a fresh cache entry
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_cache_hits_total",
			Help: "Total number of requests served from cache",
		},
		[]string{"class"},
	)

	// CacheMisses counts requests that needed a network call
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_cache_misses_total",
			Help: "Total number of requests that missed or found a stale entry",
		},
		[]string{"class"},
	)

	// Deduplicated counts callers that joined an in-flight request
	Deduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_deduplicated_total",
			Help: "Total number of requests coalesced onto an in-flight request",
		},
		[]string{"class"},
	)

	// Fetches counts logical requests by outcome (success, error, cancelled)
	Fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_fetches_total",
			Help: "Total number of logical requests by outcome",
		},
		[]string{"class", "kind", "outcome"},
	)

	// Retries counts retry attempts by error category
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_retries_total",
			Help: "Total number of retries issued",
		},
		[]string{"class", "kind", "category"},
	)

	// Escalations counts terminal failures pushed to the failure boundary
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_escalations_total",
			Help: "Total number of escalated failures",
		},
		[]string{"class", "category"},
	)

	// Evictions counts entries removed by the idle sweep
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queryplane_cache_evictions_total",
			Help: "Total number of idle cache entries evicted",
		},
	)

	// CacheEntries tracks the current cache size
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryplane_cache_entries",
			Help: "Number of entries currently cached",
		},
	)

	// FetchLatency tracks logical request latency including retries
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryplane_fetch_latency_seconds",
			Help:    "Logical request latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class", "kind"},
	)

	// HTTPRequests tracks raw API calls by status class
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryplane_http_requests_total",
			Help: "Total number of API calls by method and status class",
		},
		[]string{"method", "status_class"},
	)

	// DBConnectionPoolUsage is the percentage of open connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryplane_db_connection_pool_usage_percent",
			Help: "Percentage of the escalation database pool in use",
		},
	)
)
