package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	rateLimitCost     prometheus.Histogram
	queueEnqueued     *prometheus.CounterVec
	conversions       *prometheus.CounterVec
	conversionSeconds *prometheus.HistogramVec
	conversionPoints  prometheus.Histogram
	uploadBytes       prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_api_requests_total",
			Help: "HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vectorflow_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_api_rate_limit_rejections_total",
			Help: "API requests rejected by rate limiting.",
		}, []string{"route"}),
		rateLimitCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vectorflow_api_rate_limit_cost_tokens",
			Help:    "Tokens charged per rate-limited request.",
			Buckets: []float64{1, 2, 4, 6, 8, 11},
		}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_queue_jobs_enqueued_total",
			Help: "Jobs enqueued for vectorization.",
		}, []string{"queue"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_api_conversions_total",
			Help: "Synchronous conversions by output format and outcome.",
		}, []string{"format", "outcome"}),
		conversionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vectorflow_api_conversion_duration_seconds",
			Help:    "Decode, trace and encode time of synchronous conversions.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2.5, 8),
		}, []string{"format"}),
		conversionPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vectorflow_api_conversion_points",
			Help:    "Traced points per successful synchronous conversion.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vectorflow_api_upload_bytes",
			Help:    "Size of images posted for synchronous conversion.",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 6),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.rateLimitCost,
		m.queueEnqueued,
		m.conversions,
		m.conversionSeconds,
		m.conversionPoints,
		m.uploadBytes,
	)
	return m
}

// observeConversion records one synchronous conversion. outcome is "ok" or
// a pipeline failure reason; points only counts on success.
func (m *metrics) observeConversion(format, outcome string, elapsed time.Duration, points int) {
	m.conversions.WithLabelValues(format, outcome).Inc()
	m.conversionSeconds.WithLabelValues(format).Observe(elapsed.Seconds())
	if outcome == "ok" {
		m.conversionPoints.Observe(float64(points))
	}
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses job ids so label cardinality stays fixed.
func routeLabel(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/jobs/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/start") {
			return "/v1/jobs/{id}/start"
		}
		return "/v1/jobs/{id}"
	}
	switch path {
	case "/v1/jobs", "/v1/convert", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
