package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	failuresTotal        *prometheus.CounterVec
	activeJobs           prometheus.Gauge
	pipelineOutputsTotal prometheus.Counter
	pathsTotal           prometheus.Counter
	pointsTotal          prometheus.Counter
	pixelsProcessedTotal prometheus.Counter
	outputBytesTotal     prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_worker_jobs_total",
			Help: "Total worker job attempts by source type and final status.",
		}, []string{"source_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vectorflow_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vectorflow_worker_failures_total",
			Help: "Failed job attempts by reason.",
		}, []string{"reason"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vectorflow_worker_active_jobs",
			Help: "Current number of active vectorize jobs in the worker.",
		}),
		pipelineOutputsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_worker_pipeline_outputs_total",
			Help: "Total encoded outputs emitted by the worker.",
		}),
		pathsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_worker_paths_total",
			Help: "Total vector paths traced across successful jobs.",
		}),
		pointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_worker_points_total",
			Help: "Total path points traced across successful jobs.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_usage_pixels_processed_total",
			Help: "Total pixels scanned across all successful jobs.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_usage_output_bytes_total",
			Help: "Total encoded output bytes across all successful jobs.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vectorflow_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful jobs.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.failuresTotal,
		m.activeJobs,
		m.pipelineOutputsTotal,
		m.pathsTotal,
		m.pointsTotal,
		m.pixelsProcessedTotal,
		m.outputBytesTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
