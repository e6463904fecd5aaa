package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	submissionsTotal      *prometheus.CounterVec
	proofUploadSeconds    *prometheus.HistogramVec
	reviewsTotal          *prometheus.CounterVec
	marksCacheLookups     *prometheus.CounterVec
	brokerPublishFailures *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the SAP backend.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_http_requests_total",
			Help: "Total number of SAP API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sap_http_latency_seconds",
			Help:    "Latency distribution for SAP API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_submissions_total",
			Help: "Submissions received, by kind and outcome.",
		}, []string{"kind", "result"})

		proofUploadSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sap_proof_upload_seconds",
			Help:    "Time spent storing proof files.",
			Buckets: prometheus.DefBuckets,
		}, []string{"storage"})

		reviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_reviews_total",
			Help: "Mentor decisions stored, by kind and status.",
		}, []string{"kind", "status"})

		marksCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_marks_cache_lookups_total",
			Help: "Student marks cache lookups, by result.",
		}, []string{"result"})

		brokerPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_broker_publish_failures_total",
			Help: "Submission events that could not be published.",
		}, []string{"event"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionsTotal,
			proofUploadSeconds,
			reviewsTotal,
			marksCacheLookups,
			brokerPublishFailures,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Submissions exposes the submission outcome counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// ProofUploadLatency exposes the proof storage latency histogram.
func ProofUploadLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return proofUploadSeconds
}

// Reviews exposes the mentor decision counter.
func Reviews() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewsTotal
}

// MarksCacheLookups exposes the marks cache hit/miss counter.
func MarksCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return marksCacheLookups
}

// BrokerPublishFailures exposes the broker failure counter.
func BrokerPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return brokerPublishFailures
}
