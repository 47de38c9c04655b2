package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway-level counters, exposed at /metrics.
var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surgeonmatch_request_total",
			Help: "Total number of gated requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	CacheHitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surgeonmatch_cache_hit_total",
			Help: "Total number of response cache hits",
		},
		[]string{"endpoint"},
	)

	CacheMissTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surgeonmatch_cache_miss_total",
			Help: "Total number of response cache misses",
		},
		[]string{"endpoint"},
	)

	RateLimitExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surgeonmatch_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
