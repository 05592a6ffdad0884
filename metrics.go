package taxios

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle,
// the response cache and request superseding. It is safe for concurrent use
// and every method is a no-op on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec
	cacheEvictions *prometheus.CounterVec

	supersededTotal *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_requests_total",
				Help: "Total number of requests completed by the client",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taxios_request_duration_seconds",
				Help:    "Duration of requests in seconds, cache hits included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "taxios_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "taxios_cache_size",
				Help: "Current number of entries in cache",
			},
			[]string{"name"},
		),
		cacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_cache_evictions_total",
				Help: "Total number of least recently used entries evicted",
			},
			[]string{"name"},
		),
		supersededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_superseded_total",
				Help: "Total number of in-flight requests canceled by a newer equivalent request",
			},
			[]string{"method", "endpoint"},
		),
		tokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_token_refreshes_total",
				Help: "Total number of token refresh hook invocations by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxios_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
		registry: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}

	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordCacheEviction increments the eviction counter.
func (mc *MetricsCollector) RecordCacheEviction(name string) {
	if mc == nil {
		return
	}

	mc.cacheEvictions.WithLabelValues(name).Inc()
}

// RecordSuperseded increments the superseded request counter.
func (mc *MetricsCollector) RecordSuperseded(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.supersededTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordTokenRefresh counts a token refresh attempt; outcome is "success" or "failure".
func (mc *MetricsCollector) RecordTokenRefresh(outcome string) {
	if mc == nil {
		return
	}

	mc.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// Registry exposes the registerer the collector was built on.
func (mc *MetricsCollector) Registry() prometheus.Registerer {
	if mc == nil {
		return nil
	}
	return mc.registry
}
