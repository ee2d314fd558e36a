package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	submissionUpserts    *prometheus.CounterVec
	cacheLookupsTotal    *prometheus.CounterVec
	viewEventsTotal      *prometheus.CounterVec
	eventSocketsActive   prometheus.Gauge
	statsDurationSeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the portal.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sujet_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sujet_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sujet_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionUpserts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sujet_submission_upserts_total",
			Help: "Submissions stored, partitioned by whether an earlier file was replaced.",
		}, []string{"replaced"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sujet_cache_lookups_total",
			Help: "Cache lookups for student views.",
		}, []string{"view", "result"})

		viewEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sujet_view_events_total",
			Help: "Stale view events handled, by origin.",
		}, []string{"origin"})

		eventSocketsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sujet_event_sockets_active",
			Help: "Number of connected view event websockets.",
		})

		statsDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sujet_student_stats_duration_seconds",
			Help:    "Time spent aggregating student statistics without cache.",
			Buckets: prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			submissionUpserts,
			cacheLookupsTotal,
			viewEventsTotal,
			eventSocketsActive,
			statsDurationSeconds,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SubmissionUpserts exposes the submission upsert counter.
func SubmissionUpserts() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionUpserts
}

// CacheLookups exposes the view cache hit/miss counter.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}

// ViewEvents exposes the stale view event counter.
func ViewEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return viewEventsTotal
}

// EventSocketsActive exposes the websocket gauge.
func EventSocketsActive() prometheus.Gauge {
	RegisterMetrics()
	return eventSocketsActive
}

// StatsDuration exposes the statistics aggregation histogram.
func StatsDuration() prometheus.Histogram {
	RegisterMetrics()
	return statsDurationSeconds
}
