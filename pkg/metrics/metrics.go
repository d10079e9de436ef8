package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// CacheLookups counts per-resource cache reads; result is hit, miss or stale.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "cache_lookups_total", Help: "Per-resource cache reads by cache and result."},
		[]string{"cache", "result"},
	)
	ResponseCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "response_cache_hits_total", Help: "GET responses served from the interceptor cache."},
	)
	// TokenRefreshes counts refresh attempts; outcome is success, failure or discarded.
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "token_refreshes_total", Help: "Access token refresh attempts by outcome."},
		[]string{"outcome"},
	)
	// SessionRestores counts tokens restored from the page-scoped backup; source is stabilizer or watchdog.
	SessionRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "session_restores_total", Help: "Tokens restored from the page-scoped backup by source."},
		[]string{"source"},
	)
	BackendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankdash", Name: "backend_requests_total", Help: "Requests sent to the banking backend by method and status class."},
		[]string{"method", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CacheLookups)
	reg.MustRegister(ResponseCacheHits)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(SessionRestores)
	reg.MustRegister(BackendRequests)
}
