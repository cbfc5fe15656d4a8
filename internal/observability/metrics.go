package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest and enrichment pipeline.
type Metrics struct {
	EventsStaged           prometheus.Counter
	EventsProcessed        prometheus.Counter
	SignificantEvents      prometheus.Counter
	LoadErrors             prometheus.Counter
	NotificationsPublished prometheus.Counter

	JobRunning  prometheus.Gauge
	JobDuration prometheus.Histogram

	// WorldPop demographic lookups.
	WorldPopRequests     *prometheus.CounterVec // label: outcome={ok,task_error,timeout,no_task,transport_error}
	WorldPopTaskDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.EventsStaged,
		m.EventsProcessed,
		m.SignificantEvents,
		m.LoadErrors,
		m.NotificationsPublished,
		m.JobRunning,
		m.JobDuration,
		m.WorldPopRequests,
		m.WorldPopTaskDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "events_staged_total",
			Help:      "Raw earthquake events staged from the USGS feed.",
		}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "events_processed_total",
			Help:      "Processed earthquake events written to storage.",
		}),
		SignificantEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "significant_events_total",
			Help:      "Processed events classified as significant.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "load_errors_total",
			Help:      "Failures writing processed events to storage.",
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "notifications_published_total",
			Help:      "Significant-event notifications published to Kafka.",
		}),
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_etl",
			Name:      "batch_job_running",
			Help:      "1 while the enrichment batch job is active.",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_etl",
			Name:      "batch_job_duration_seconds",
			Help:      "Duration of a complete enrichment batch job.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		WorldPopRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_etl",
			Name:      "worldpop_requests_total",
			Help:      "WorldPop demographic lookups by outcome.",
		}, []string{"outcome"}),
		WorldPopTaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_etl",
			Name:      "worldpop_task_duration_seconds",
			Help:      "Time from task submission to a terminal poll state.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15},
		}),
	}
}
