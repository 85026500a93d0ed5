package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the
// catalog cache and the settlement workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	enrollmentsCreated *prometheus.CounterVec
	ordersOpened       *prometheus.CounterVec
	ordersExpired      prometheus.Counter
	receiptsSubmitted  prometheus.Counter
	receiptsReviewed   *prometheus.CounterVec
	documentCleanups   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollmentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_enrollments_created_total",
		Help: "Enrollments written, by source",
	}, []string{"source"})

	ordersOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_payment_orders_opened_total",
		Help: "Payment orders opened, by origin type",
	}, []string{"origin"})

	ordersExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_payment_orders_expired_total",
		Help: "Pending payment orders persisted as expired",
	})

	receiptsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_payment_receipts_submitted_total",
		Help: "Payment receipts accepted",
	})

	receiptsReviewed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_payment_receipts_reviewed_total",
		Help: "Payment receipts reviewed, by decision",
	}, []string{"decision"})

	documentCleanups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_receipt_document_cleanups_total",
		Help: "Orphaned receipt documents removed, by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		enrollmentsCreated, ordersOpened, ordersExpired, receiptsSubmitted, receiptsReviewed, documentCleanups, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		enrollmentsCreated: enrollmentsCreated,
		ordersOpened:       ordersOpened,
		ordersExpired:      ordersExpired,
		receiptsSubmitted:  receiptsSubmitted,
		receiptsReviewed:   receiptsReviewed,
		documentCleanups:   documentCleanups,
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollmentCreated counts an enrollment written by source ("direct" or "list").
func (m *MetricsService) RecordEnrollmentCreated(source string) {
	if m == nil {
		return
	}
	m.enrollmentsCreated.WithLabelValues(source).Inc()
}

// RecordOrderOpened counts an opened payment order.
func (m *MetricsService) RecordOrderOpened(origin string) {
	if m == nil {
		return
	}
	m.ordersOpened.WithLabelValues(origin).Inc()
}

// RecordOrdersExpired counts pending orders persisted as expired.
func (m *MetricsService) RecordOrdersExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersExpired.Add(float64(n))
}

// RecordReceiptSubmitted counts an accepted receipt.
func (m *MetricsService) RecordReceiptSubmitted() {
	if m == nil {
		return
	}
	m.receiptsSubmitted.Inc()
}

// RecordReceiptReviewed counts a review decision.
func (m *MetricsService) RecordReceiptReviewed(decision string) {
	if m == nil {
		return
	}
	m.receiptsReviewed.WithLabelValues(decision).Inc()
}

// RecordDocumentCleanup counts a compensating document removal outcome.
func (m *MetricsService) RecordDocumentCleanup(outcome string) {
	if m == nil {
		return
	}
	m.documentCleanups.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
