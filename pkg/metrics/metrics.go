// Package metrics defines the Prometheus metric collectors for batch
// retrieval runs and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the runner.
type Metrics struct {
	TopicsProcessedTotal prometheus.Counter
	RetrievalLatency     prometheus.Histogram
	ResultsPerTopic      prometheus.Histogram
	RunFilesTotal        *prometheus.CounterVec
	QueryTermsResolved   *prometheus.CounterVec
}

// New creates and registers all collectors on the given registerer.
// Passing a fresh registry keeps tests independent; the CLI passes
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TopicsProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qlrun_topics_processed_total",
				Help: "Total topics retrieved across all topic files.",
			},
		),
		RetrievalLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qlrun_retrieval_latency_seconds",
				Help:    "Per-topic retrieval latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		ResultsPerTopic: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qlrun_results_per_topic",
				Help:    "Number of ranked results returned per topic.",
				Buckets: []float64{0, 1, 10, 100, 500, 1000},
			},
		),
		RunFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qlrun_run_files_total",
				Help: "Run files by outcome (written, skipped).",
			},
			[]string{"status"},
		),
		QueryTermsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qlrun_query_terms_total",
				Help: "Query tokens by dictionary resolution (resolved, unresolved).",
			},
			[]string{"resolution"},
		),
	}

	reg.MustRegister(
		m.TopicsProcessedTotal,
		m.RetrievalLatency,
		m.ResultsPerTopic,
		m.RunFilesTotal,
		m.QueryTermsResolved,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
