package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Patch run metrics
	PatchRunsTotal      *prometheus.CounterVec
	PatchRunDuration    prometheus.Histogram
	ModulesPatchedTotal prometheus.Counter
	TransformsTotal     *prometheus.CounterVec
	TargetsSkippedTotal *prometheus.CounterVec

	// Routing table metrics
	PluginsLoaded       prometheus.Gauge
	TargetsRouted       prometheus.Gauge
	RegistrationsActive prometheus.Gauge

	// Watch daemon metrics
	WatchEventsTotal *prometheus.CounterVec

	// Decode cache metrics
	DecodeCacheHits    prometheus.Gauge
	DecodeCacheMisses  prometheus.Gauge
	DecodeCacheEntries prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Patch run metrics
		PatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_patch_runs_total",
				Help: "Total number of patch runs",
			},
			[]string{"trigger", "status"},
		),
		PatchRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stitch_patch_run_duration_seconds",
				Help:    "Patch run duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
			},
		),
		ModulesPatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stitch_modules_patched_total",
				Help: "Total number of module records produced",
			},
		),
		TransformsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_transforms_total",
				Help: "Total number of transform invocations",
			},
			[]string{"status"},
		),
		TargetsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_targets_skipped_total",
				Help: "Total number of routed targets skipped",
			},
			[]string{"reason"},
		),

		// Routing table metrics
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_plugins_loaded",
				Help: "Number of plugin files loaded by the current table",
			},
		),
		TargetsRouted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_targets_routed",
				Help: "Number of distinct target modules routed",
			},
		),
		RegistrationsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_registrations_active",
				Help: "Number of patcher registrations in the current table",
			},
		),

		// Watch daemon metrics
		WatchEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_watch_events_total",
				Help: "Total number of filesystem change triggers",
			},
			[]string{"kind"},
		),

		// Decode cache metrics
		DecodeCacheHits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_decode_cache_hits",
				Help: "Decode cache hits since start",
			},
		),
		DecodeCacheMisses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_decode_cache_misses",
				Help: "Decode cache misses since start",
			},
		),
		DecodeCacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_decode_cache_entries",
				Help: "Decode cache entries currently held",
			},
		),

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stitch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.PatchRunsTotal,
		m.PatchRunDuration,
		m.ModulesPatchedTotal,
		m.TransformsTotal,
		m.TargetsSkippedTotal,
		m.PluginsLoaded,
		m.TargetsRouted,
		m.RegistrationsActive,
		m.WatchEventsTotal,
		m.DecodeCacheHits,
		m.DecodeCacheMisses,
		m.DecodeCacheEntries,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the /metrics endpoint handler for a registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
