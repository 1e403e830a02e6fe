package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the resolution
// engine.
type Metrics struct {
	CacheLookups *prometheus.CounterVec // labels: kind={coordinate,distance}, result={hit,miss}
	CacheSaves   *prometheus.CounterVec // labels: kind={coordinate,distance}
	CacheErrors  prometheus.Counter

	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
	RouteRequests   *prometheus.CounterVec // labels: outcome={success,empty,error}
	RouteRetries    prometheus.Counter

	BatchDuration prometheus.Histogram
	JobDuration   prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheSaves,
		m.CacheErrors,
		m.GeocodeRequests,
		m.RouteRequests,
		m.RouteRetries,
		m.BatchDuration,
		m.JobDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return build()
}

func build() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by record kind and result.",
		}, []string{"kind", "result"}),
		CacheSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "cache_saves_total",
			Help:      "Cache upserts by record kind.",
		}, []string{"kind"}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "cache_errors_total",
			Help:      "Cache store I/O failures (treated as misses).",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		RouteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "route_requests_total",
			Help:      "Routing API requests by outcome.",
		}, []string{"outcome"}),
		RouteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_distance",
			Name:      "route_retries_total",
			Help:      "Routing attempts beyond the first.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "city_distance",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of a full batch.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "city_distance",
			Name:      "job_duration_seconds",
			Help:      "Duration of one origin's job within a batch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
