// Package metrics exposes the application's Prometheus instrumentation on a
// dedicated registry so tests can build isolated collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leaselens"

// Default buckets per concern.  Pipeline stages run minutes when the model is
// slow, HTTP and queries run milliseconds.
var (
	httpDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	pipelineDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	llmDurationBuckets      = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	sizeBuckets             = []float64{1000, 10000, 100000, 1000000, 10000000, 50000000}
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP layer.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  *prometheus.GaugeVec

	// Document pipeline.
	DocumentsUploadedTotal *prometheus.CounterVec
	DocumentSizeBytes      prometheus.Histogram
	PipelineStageDuration  *prometheus.HistogramVec
	PipelineRunsTotal      *prometheus.CounterVec

	// Redaction.
	RedactionsTotal *prometheus.CounterVec

	// Analysis.
	ChunkAnalysesTotal  *prometheus.CounterVec
	FindingsTotal       *prometheus.CounterVec
	AnalysisQueueDepth  prometheus.Gauge
	AnalysisTaskRetries *prometheus.CounterVec

	// GenAI.
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	// Infrastructure.
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
}

// New builds a Metrics set on its own registry, with process and Go runtime
// collectors included.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return newOn(registry)
}

// NewForTesting builds a Metrics set without runtime collectors.
func NewForTesting() *Metrics {
	return newOn(prometheus.NewRegistry())
}

func newOn(registry *prometheus.Registry) *Metrics {
	factory := promauto{registry: registry}
	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.counterVec("http_requests_total",
			"Total HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: factory.histogramVec("http_request_duration_seconds",
			"HTTP request duration", httpDurationBuckets, "method", "path"),
		HTTPActiveRequests: factory.gaugeVec("http_active_requests",
			"In-flight HTTP requests", "method"),

		DocumentsUploadedTotal: factory.counterVec("documents_uploaded_total",
			"Uploaded documents", "status"),
		DocumentSizeBytes: factory.histogram("document_size_bytes",
			"Uploaded document size", sizeBuckets),
		PipelineStageDuration: factory.histogramVec("pipeline_stage_duration_seconds",
			"Pipeline stage duration", pipelineDurationBuckets, "stage"),
		PipelineRunsTotal: factory.counterVec("pipeline_runs_total",
			"Pipeline runs", "stage", "status"),

		RedactionsTotal: factory.counterVec("redactions_total",
			"Redacted PII entities", "entity_type"),

		ChunkAnalysesTotal: factory.counterVec("chunk_analyses_total",
			"Per-chunk analyses", "status"),
		FindingsTotal: factory.counterVec("findings_total",
			"Consolidated findings", "severity"),
		AnalysisQueueDepth: factory.gauge("analysis_queue_depth",
			"Documents waiting for analysis"),
		AnalysisTaskRetries: factory.counterVec("analysis_task_retries_total",
			"Analysis task retries", "task"),

		LLMRequestsTotal: factory.counterVec("llm_requests_total",
			"Model calls", "model", "operation", "status"),
		LLMRequestDuration: factory.histogramVec("llm_request_duration_seconds",
			"Model call duration", llmDurationBuckets, "model", "operation"),

		CacheHitsTotal: factory.counterVec("cache_hits_total",
			"Cache hits", "cache"),
		CacheMissesTotal: factory.counterVec("cache_misses_total",
			"Cache misses", "cache"),
		ErrorsTotal: factory.counterVec("errors_total",
			"Errors by component", "component", "error_type"),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest updates the request counter and latency histogram.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStage records one pipeline stage run.
func (m *Metrics) RecordStage(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.PipelineRunsTotal.WithLabelValues(stage, status).Inc()
	m.PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRedactions adds the per-entity-type counts from one redaction pass.
func (m *Metrics) RecordRedactions(counts map[string]int) {
	for entityType, n := range counts {
		m.RedactionsTotal.WithLabelValues(entityType).Add(float64(n))
	}
}

// RecordLLMCall records one completion or embedding call.
func (m *Metrics) RecordLLMCall(model, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.LLMRequestsTotal.WithLabelValues(model, operation, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordCacheAccess counts a hit or miss on the named cache.
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// promauto mirrors the promauto package against a private registry.
type promauto struct {
	registry *prometheus.Registry
}

func (f promauto) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: name, Help: help,
	}, labels)
	f.registry.MustRegister(vec)
	return vec
}

func (f promauto) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	}, labels)
	f.registry.MustRegister(vec)
	return vec
}

func (f promauto) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	})
	f.registry.MustRegister(g)
	return g
}

func (f promauto) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
	f.registry.MustRegister(vec)
	return vec
}

func (f promauto) histogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	})
	f.registry.MustRegister(h)
	return h
}
