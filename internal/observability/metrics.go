package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// API call rate by method and status class. Watch for: error vs success ratio.
	GatewayRequestsTotal *prometheus.CounterVec

	// API call latency. Watch for: p95 approaching the 15s request ceiling.
	GatewayRequestDuration *prometheus.HistogramVec

	// Cache engine read outcomes: hit, stale, miss, disabled, snapshot.
	CacheReadsTotal *prometheus.CounterVec

	// Retry attempts inside the cache engine. High values = unstable backend.
	CacheRetriesTotal prometheus.Counter

	// Zone mutations by operation and outcome.
	MutationsTotal *prometheus.CounterVec

	// Debounced searches that actually reached the network path.
	SearchQueriesTotal prometheus.Counter

	// Toasts pushed by severity. Error-toast rate is the user-visible failure rate.
	ToastsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayRequestsTotal",
			Help: "Outbound API calls by method and status class",
		},
		[]string{"method", "status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatewayRequestDurationSeconds",
			Help:    "Outbound API call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"method", "status"},
	)

	CacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheReadsTotal",
			Help: "Cache engine reads by outcome (hit, stale, miss, disabled, snapshot)",
		},
		[]string{"outcome"},
	)

	CacheRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheRetriesTotal",
			Help: "Retry attempts issued by the cache engine",
		},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutationsTotal",
			Help: "Zone mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SearchQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchQueriesTotal",
			Help: "Committed debounced searches",
		},
	)

	ToastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toastsTotal",
			Help: "User-facing notifications by severity",
		},
		[]string{"severity"},
	)

	registry.MustRegister(
		GatewayRequestsTotal,
		GatewayRequestDuration,
		CacheReadsTotal,
		CacheRetriesTotal,
		MutationsTotal,
		SearchQueriesTotal,
		ToastsTotal,
	)
}

// StatusLabel maps an HTTP status code to the stable label set used by the
// gateway metrics.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == 401:
		return "unauthorized"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

// MetricsHandler returns an http.Handler serving application and runtime
// metrics from the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
