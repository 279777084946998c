package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	uploadsTotal    prometheus.Counter
	uploadBytes     prometheus.Counter
	downloadsTotal  *prometheus.CounterVec
	shareResolves   *prometheus.CounterVec
	trashOps        *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_uploads_total",
		Help: "Total number of file uploads",
	})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_upload_bytes_total",
		Help: "Total bytes uploaded",
	})

	downloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "file_downloads_total",
		Help: "Total file downloads by origin",
	}, []string{"origin"})

	shareResolves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "share_resolutions_total",
		Help: "Share link resolutions by outcome",
	}, []string{"outcome"})

	trashOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trash_operations_total",
		Help: "Trash lifecycle operations by kind",
	}, []string{"operation"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsTotal, uploadBytes, downloadsTotal, shareResolves, trashOps, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		uploadsTotal:    uploadsTotal,
		uploadBytes:     uploadBytes,
		downloadsTotal:  downloadsTotal,
		shareResolves:   shareResolves,
		trashOps:        trashOps,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordUpload counts a completed upload.
func (m *MetricsService) RecordUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.Inc()
	m.uploadBytes.Add(float64(size))
}

// RecordDownload counts a served download. Origin is "owner" or "share".
func (m *MetricsService) RecordDownload(origin string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(origin).Inc()
}

// RecordShareResolution counts a public resolve by outcome.
func (m *MetricsService) RecordShareResolution(outcome string) {
	if m == nil {
		return
	}
	m.shareResolves.WithLabelValues(outcome).Inc()
}

// RecordTrashOperation counts a trash lifecycle operation.
func (m *MetricsService) RecordTrashOperation(operation string) {
	if m == nil {
		return
	}
	m.trashOps.WithLabelValues(operation).Inc()
}

// RecordCacheOperation counts cache hits and misses.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
