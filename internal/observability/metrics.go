package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "streamline"

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ingestTotal         *prometheus.CounterVec
	ingestStageDuration *prometheus.HistogramVec
	transcodeDuration   prometheus.Histogram
	queryDuration       prometheus.Histogram
	cacheLookups        *prometheus.CounterVec
	sweptDirs           prometheus.Counter
}

// NewMetrics creates collectors on a private registry that also carries the
// Go runtime and process collectors.
func NewMetrics(version string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_total",
			Help:      "Upload ingests by outcome",
		}, []string{"outcome"}),
		ingestStageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_stage_duration_seconds",
			Help:      "Time spent in each ingest stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		transcodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transcode_duration_seconds",
			Help:      "Wall time of successful transcodes",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "query_duration_seconds",
			Help:      "Catalog query latency",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "query_cache_lookups_total",
			Help:      "Query page cache lookups by result",
		}, []string{"result"}),
		sweptDirs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "staging_dirs_swept_total",
			Help:      "Orphaned staging directories removed",
		}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		m.httpRequests,
		m.httpRequestDuration,
		m.ingestTotal,
		m.ingestStageDuration,
		m.transcodeDuration,
		m.queryDuration,
		m.cacheLookups,
		m.sweptDirs,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterGaugeFunc exposes a value sampled at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IngestFinished records an ingest outcome ("committed" or an error kind).
func (m *Metrics) IngestFinished(outcome string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long an ingest stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveTranscode records a successful transcode.
func (m *Metrics) ObserveTranscode(d time.Duration) {
	if m == nil {
		return
	}
	m.transcodeDuration.Observe(d.Seconds())
}

// ObserveQuery records a catalog query.
func (m *Metrics) ObserveQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(d.Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// StagingSwept records removed staging directories.
func (m *Metrics) StagingSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptDirs.Add(float64(n))
}
