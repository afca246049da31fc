package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	activityRecordsWritten   *prometheus.CounterVec
	activityWriteFailures    *prometheus.CounterVec
	activityQueueDropped     prometheus.Counter
	activityQueueDepth       prometheus.Gauge
	activityMetadataInvalid  *prometheus.CounterVec
	activityRetentionDeleted *prometheus.CounterVec
	activityQueryCache       *prometheus.CounterVec
	activityQueryLatency     prometheus.Histogram
	activityStreamClients    prometheus.Gauge

	contactSubmissions *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		activityRecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_records_written_total",
			Help: "Activity records persisted, by action and actor type.",
		}, []string{"action", "actor_type"})

		activityWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_write_failures_total",
			Help: "Activity records that could not be built or persisted.",
		}, []string{"reason"})

		activityQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_queue_dropped_total",
			Help: "Activity jobs dropped because the writer queue was full.",
		})

		activityQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "activity_queue_depth",
			Help: "Activity jobs waiting in the writer queue.",
		})

		activityMetadataInvalid = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_metadata_invalid_total",
			Help: "Activity records whose extra metadata failed schema validation.",
		}, []string{"schema"})

		activityRetentionDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_retention_deleted_total",
			Help: "Activity records removed by the retention policy.",
		}, []string{"actor_type"})

		activityQueryCache = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_query_cache_total",
			Help: "Activity list requests by cache result.",
		}, []string{"result"})

		activityQueryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "activity_query_latency_seconds",
			Help:    "Latency distribution for activity list queries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		activityStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "activity_stream_clients",
			Help: "Connected live activity stream clients.",
		})

		contactSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact form submissions by outcome.",
		}, []string{"status"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			activityRecordsWritten, activityWriteFailures, activityQueueDropped, activityQueueDepth,
			activityMetadataInvalid, activityRetentionDeleted, activityQueryCache, activityQueryLatency,
			activityStreamClients, contactSubmissions,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func ActivityRecordsWritten() *prometheus.CounterVec {
	RegisterMetrics()
	return activityRecordsWritten
}

func ActivityWriteFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return activityWriteFailures
}

func ActivityQueueDropped() prometheus.Counter {
	RegisterMetrics()
	return activityQueueDropped
}

func ActivityQueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return activityQueueDepth
}

func ActivityMetadataInvalid() *prometheus.CounterVec {
	RegisterMetrics()
	return activityMetadataInvalid
}

func ActivityRetentionDeleted() *prometheus.CounterVec {
	RegisterMetrics()
	return activityRetentionDeleted
}

func ActivityQueryCache() *prometheus.CounterVec {
	RegisterMetrics()
	return activityQueryCache
}

func ActivityQueryLatency() prometheus.Histogram {
	RegisterMetrics()
	return activityQueryLatency
}

func ActivityStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return activityStreamClients
}

// ContactSubmissions exposes the contact submission outcome counter.
func ContactSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return contactSubmissions
}
