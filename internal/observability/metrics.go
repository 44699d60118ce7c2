// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scheduler metrics
	TicksTotal      prometheus.Counter
	TickErrors      prometheus.Counter
	JobsDispatched  *prometheus.CounterVec
	JobsSkipped     *prometheus.CounterVec
	UniverseSize    prometheus.Gauge
	LastSuccessTick prometheus.Gauge

	// Collection metrics
	RecordsInserted *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec

	// Filter metrics
	PostsAccepted prometheus.Counter
	PostsRejected *prometheus.CounterVec

	// Stream metrics
	StreamTicksAccepted *prometheus.CounterVec
	StreamTicksDropped  *prometheus.CounterVec
	StreamFailovers     *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_collector"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks",
		}),
		TickErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_errors_total",
			Help:      "Total number of ticks that failed",
		}),
		JobsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_dispatched_total",
			Help:      "Total number of collection jobs dispatched by type and scope",
		}, []string{"job_type", "scope"}),
		JobsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_skipped_total",
			Help:      "Total number of collection jobs skipped because a same-type job was still running",
		}, []string{"job_type"}),
		UniverseSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "universe_size",
			Help:      "Number of assets in the active universe",
		}),
		LastSuccessTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of the last tick that completed without error",
		}),

		RecordsInserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "records_inserted_total",
			Help:      "Total number of dataset rows inserted by category",
		}, []string{"category"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "provider_errors_total",
			Help:      "Total number of provider errors by source and kind",
		}, []string{"source", "kind"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "job_duration_seconds",
			Help:      "Duration of collection jobs by type",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"job_type"}),

		PostsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "posts_accepted_total",
			Help:      "Total number of candidates that passed every filter stage",
		}),
		PostsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "posts_rejected_total",
			Help:      "Total number of candidates rejected by stage",
		}, []string{"stage"}),

		StreamTicksAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ticks_accepted_total",
			Help:      "Total number of ticks accepted past the rate limit by exchange",
		}, []string{"exchange"}),
		StreamTicksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped by the coalescing rate limit by exchange",
		}, []string{"exchange"}),
		StreamFailovers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "failovers_total",
			Help:      "Total number of failovers to the backup endpoint by exchange",
		}, []string{"exchange"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick increments the tick counter and, on success, stamps the health
// gauge.
func RecordTick(unixNow int64, err error) {
	DefaultMetrics.TicksTotal.Inc()
	if err != nil {
		DefaultMetrics.TickErrors.Inc()
		return
	}
	DefaultMetrics.LastSuccessTick.Set(float64(unixNow))
}

// RecordJobDispatched increments the dispatch counter for a job type.
func RecordJobDispatched(jobType, scope string) {
	DefaultMetrics.JobsDispatched.WithLabelValues(jobType, scope).Inc()
}

// RecordJobSkipped increments the overlap-skip counter for a job type.
func RecordJobSkipped(jobType string) {
	DefaultMetrics.JobsSkipped.WithLabelValues(jobType).Inc()
}

// RecordJobOutcome records a finished job's duration and inserted rows.
func RecordJobOutcome(jobType string, seconds float64, inserted int) {
	DefaultMetrics.JobDuration.WithLabelValues(jobType).Observe(seconds)
	DefaultMetrics.RecordsInserted.WithLabelValues(jobType).Add(float64(inserted))
}

// UpdateUniverseSize updates the active universe gauge.
func UpdateUniverseSize(n int) {
	DefaultMetrics.UniverseSize.Set(float64(n))
}

// RecordProviderError records a provider failure.
func RecordProviderError(source, kind string) {
	DefaultMetrics.ProviderErrors.WithLabelValues(source, kind).Inc()
}

// RecordPostAccepted counts a candidate that passed every filter stage.
func RecordPostAccepted() {
	DefaultMetrics.PostsAccepted.Inc()
}

// RecordPostRejected counts a candidate rejected at the named stage.
func RecordPostRejected(stage string) {
	DefaultMetrics.PostsRejected.WithLabelValues(stage).Inc()
}

// RecordStreamTick counts one parsed tick, accepted or dropped by the
// coalescing rate limit.
func RecordStreamTick(exchange string, accepted bool) {
	if accepted {
		DefaultMetrics.StreamTicksAccepted.WithLabelValues(exchange).Inc()
		return
	}
	DefaultMetrics.StreamTicksDropped.WithLabelValues(exchange).Inc()
}

// RecordStreamFailover counts a failover to the backup endpoint.
func RecordStreamFailover(exchange string) {
	DefaultMetrics.StreamFailovers.WithLabelValues(exchange).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
