package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search engine Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsdex",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"}, // "ok" / "degraded" / "failed"
	)

	SearchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "search_failures_total",
			Help:      "Failed searches by stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsdex",
			Name:      "search_hits",
			Help:      "Hits returned by each retrieval source before filtering",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 300},
		},
		[]string{"source"},
	)

	SearchDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "search_degraded_total",
			Help:      "Searches answered from a single source after the other failed",
		},
		[]string{"source"},
	)

	BackendRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdex",
			Name:      "backend_retries_total",
			Help:      "Backend call retries after a transient failure",
		},
		[]string{"source"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchFailuresTotal)
	prometheus.MustRegister(SearchHits)
	prometheus.MustRegister(SearchDegradedTotal)
	prometheus.MustRegister(BackendRetriesTotal)
	searchMetricsRegistered = true
}
