// Package metrics defines the Prometheus metric collectors used by the
// indexer and searcher services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	FeedbackQueriesTotal *prometheus.CounterVec
	FeedbackPhaseLatency *prometheus.HistogramVec
	FeedbackResultsCount prometheus.Histogram
	FeedbackDocsMissing  prometheus.Counter
	FeedbackModelTerms   prometheus.Histogram
	CandidateSetSize     prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	IndexFlushesTotal    *prometheus.CounterVec
	IndexSegments        prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		FeedbackQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_queries_total",
				Help: "Feedback searches by outcome (ok, invalid, io_error, error).",
			},
			[]string{"outcome"},
		),
		FeedbackPhaseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedback_phase_latency_seconds",
				Help:    "Latency of each feedback search phase (baseline, feedback_model, rerank).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"phase"},
		),
		FeedbackResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feedback_results_count",
				Help:    "Number of results returned per feedback search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
		),
		FeedbackDocsMissing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feedback_docs_missing_total",
				Help: "Feedback documents skipped because they were absent from the postings snapshot.",
			},
		),
		FeedbackModelTerms: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feedback_model_terms",
				Help:    "Number of tokens in each feedback distribution.",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		CandidateSetSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "candidate_set_size",
				Help:    "Number of baseline candidates rescored per feedback search.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total index flush operations by status.",
			},
			[]string{"status"},
		),
		IndexSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_segments",
				Help: "Number of on-disk segments currently open.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.FeedbackQueriesTotal,
		m.FeedbackPhaseLatency,
		m.FeedbackResultsCount,
		m.FeedbackDocsMissing,
		m.FeedbackModelTerms,
		m.CandidateSetSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.IndexFlushesTotal,
		m.IndexSegments,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
