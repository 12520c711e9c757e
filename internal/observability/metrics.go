package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disaster_console"

// Metrics holds the Prometheus counters, histograms, and gauges for the console.
type Metrics struct {
	// Sync metrics.
	PollOutcomes         *prometheus.CounterVec // labels: outcome={success,failure,skipped}
	PollDuration         prometheus.Histogram
	ResourceFetches      *prometheus.CounterVec // labels: resource, outcome={success,error}
	LastSuccessfulSync   prometheus.Gauge
	SyncRunning          prometheus.Gauge
	SnapshotPublishError prometheus.Counter

	// Upstream data service metrics.
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint
	PlannerCache     *prometheus.CounterVec   // labels: kind={route,coverage}, result={hit,miss}

	// Console metrics.
	GeometryRejections  *prometheus.CounterVec // labels: kind={vertex,ring,route}
	NotificationsActive prometheus.Gauge
	EventsDropped       prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		PollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll attempts by outcome.",
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete seven-resource batch fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ResourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_fetch_total",
			Help:      "Per-resource fetches within a poll by outcome.",
		}, []string{"resource", "outcome"}),
		LastSuccessfulSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync.",
		}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_running",
			Help:      "1 when the sync engine is active, 0 when shut down.",
		}),
		SnapshotPublishError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_errors_total",
			Help:      "Snapshots the sink failed to publish.",
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Data service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"endpoint"}),
		PlannerCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planner_cache_total",
			Help:      "Route and coverage cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		GeometryRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_rejections_total",
			Help:      "Geometry entries dropped during validation.",
		}, []string{"kind"}),
		NotificationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_active",
			Help:      "Notifications currently visible.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber was not keeping up.",
		}),
	}
}

// NewMetrics creates and registers all console metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollOutcomes,
		m.PollDuration,
		m.ResourceFetches,
		m.LastSuccessfulSync,
		m.SyncRunning,
		m.SnapshotPublishError,
		m.UpstreamDuration,
		m.PlannerCache,
		m.GeometryRejections,
		m.NotificationsActive,
		m.EventsDropped,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
