package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"backend", "operation"},
	)

	UploadedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_uploaded_files_total",
			Help: "Uploaded files by outcome (accepted or the rejection reason)",
		},
		[]string{"outcome"},
	)

	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_uploaded_bytes_total",
			Help: "Total bytes written to blob storage by uploads",
		},
	)
)

// RecordAPIRequest records a finished request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// ObserveStore records the duration of a store operation and counts failures.
//
//	defer metrics.ObserveStore("json", "create_library", time.Now(), &err)
func ObserveStore(backend, op string, start time.Time, errp *error) {
	StoreOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if errp != nil && *errp != nil {
		StoreErrors.WithLabelValues(backend, op).Inc()
	}
}
