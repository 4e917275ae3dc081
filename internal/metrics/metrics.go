package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup kinds.
const (
	LookupMaster   = "master"
	LookupManifest = "manifest"
	LookupSegment  = "segment"
)

// Metrics holds Prometheus collectors for hlscache.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	errorsTotal       prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	sourceFetches     *prometheus.CounterVec
	segmenterRuns     *prometheus.CounterVec
	variantFailures   prometheus.Counter
	evictionsTotal    *prometheus.CounterVec
	evictionFailures  *prometheus.CounterVec
	cacheUsageBytes   *prometheus.GaugeVec
	maintenancePasses *prometheus.CounterVec
}

// New creates and registers the hlscache collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlscache_http_errors_total",
			Help: "HTTP responses with status 4xx or 5xx",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_cache_lookups_total",
			Help: "Generated artifact lookups by kind and result",
		}, []string{"kind", "result"}),
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_source_fetches_total",
			Help: "Source retrievals into the input cache by backend and result",
		}, []string{"backend", "result"}),
		segmenterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_segmenter_runs_total",
			Help: "Segmenter invocations by result",
		}, []string{"result"}),
		variantFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlscache_variant_failures_total",
			Help: "Renditions dropped from a master playlist because their source was missing",
		}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_evictions_total",
			Help: "Cache entries evicted by namespace and reason",
		}, []string{"namespace", "reason"}),
		evictionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_eviction_failures_total",
			Help: "Cache entries that could not be deleted",
		}, []string{"namespace"}),
		cacheUsageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hlscache_cache_usage_bytes",
			Help: "Bytes on disk under each namespace root after the last eviction pass",
		}, []string{"namespace"}),
		maintenancePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlscache_maintenance_passes_total",
			Help: "Maintenance loop iterations by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.cacheLookups,
		m.sourceFetches,
		m.segmenterRuns,
		m.variantFailures,
		m.evictionsTotal,
		m.evictionFailures,
		m.cacheUsageBytes,
		m.maintenancePasses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts a completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	if status >= 400 {
		m.errorsTotal.Inc()
	}
}

// CacheLookup records whether a generated artifact was already on disk.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// SourceFetch records a source retrieval outcome.
func (m *Metrics) SourceFetch(backend, result string) {
	if m == nil {
		return
	}
	m.sourceFetches.WithLabelValues(backend, result).Inc()
}

// SegmenterRun records a segmenter invocation.
func (m *Metrics) SegmenterRun(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.segmenterRuns.WithLabelValues(result).Inc()
}

// VariantFailed counts a rendition dropped from a master playlist.
func (m *Metrics) VariantFailed() {
	if m == nil {
		return
	}
	m.variantFailures.Inc()
}

// Evicted counts one evicted entry.
func (m *Metrics) Evicted(namespace, reason string) {
	if m == nil {
		return
	}
	m.evictionsTotal.WithLabelValues(namespace, reason).Inc()
}

// EvictionFailed counts an entry whose deletion failed.
func (m *Metrics) EvictionFailed(namespace string) {
	if m == nil {
		return
	}
	m.evictionFailures.WithLabelValues(namespace).Inc()
}

// SetUsage records the bytes used under a namespace root.
func (m *Metrics) SetUsage(namespace string, bytes int64) {
	if m == nil {
		return
	}
	m.cacheUsageBytes.WithLabelValues(namespace).Set(float64(bytes))
}

// MaintenancePass records one maintenance loop iteration.
func (m *Metrics) MaintenancePass(result string) {
	if m == nil {
		return
	}
	m.maintenancePasses.WithLabelValues(result).Inc()
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
