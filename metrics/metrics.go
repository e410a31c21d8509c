// Package metrics provides the Prometheus metrics of the notebook server.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups HTTP and storage metrics registered on one registry.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	UploadsTotal        *prometheus.CounterVec
	UploadBytes         prometheus.Histogram
	BlobDeleteFailures  prometheus.Counter
	UploadCompensations prometheus.Counter
	OrphansRemoved      prometheus.Counter
	registry            *prometheus.Registry
}

// New creates the metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()

	collectors := []prometheus.Collector{
		m.RequestsTotal,
		m.RequestDuration,
		m.UploadsTotal,
		m.UploadBytes,
		m.BlobDeleteFailures,
		m.UploadCompensations,
		m.OrphansRemoved,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register notebook metrics: %w", err)
		}
	}
	return m, nil
}

// NewNop returns metrics registered on a private registry, for callers and
// tests that do not expose them.
func NewNop() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		// A fresh registry cannot hold duplicates.
		panic(err)
	}
	return m
}

func (m *Metrics) initMetrics() {
	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_http_requests_total",
		Help: "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	m.UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_uploads_total",
		Help: "Total number of upload attempts by area and result",
	}, []string{"area", "result"})

	m.UploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notebook_upload_size_bytes",
		Help:    "Size of stored uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	m.BlobDeleteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notebook_blob_delete_failures_total",
		Help: "Blob removals that failed after their row was deleted",
	})

	m.UploadCompensations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notebook_upload_compensations_total",
		Help: "Stored blobs removed because their image row could not be created",
	})

	m.OrphansRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notebook_orphans_removed_total",
		Help: "Blobs without a database row removed by the orphan sweep",
	})
}

// ObserveUpload records one upload attempt.
func (m *Metrics) ObserveUpload(area string, size int64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UploadsTotal.WithLabelValues(area, result).Inc()
	if err == nil {
		m.UploadBytes.Observe(float64(size))
	}
}

// ObserveRequest records one served HTTP request under its route template.
func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
