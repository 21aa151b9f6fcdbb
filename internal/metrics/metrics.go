package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ExtractionCalls    *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	Chunks             prometheus.Counter
	Pass2Candidates    prometheus.Counter
	ItemsAccepted      *prometheus.CounterVec
	ItemsRejected      *prometheus.CounterVec
	Conflicts          *prometheus.CounterVec
	Jobs               *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ExtractionCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyengine_extraction_calls_total",
				Help: "Extractor calls by pass and outcome",
			},
			[]string{"pass", "outcome"},
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "policyengine_extraction_call_seconds",
				Help:    "Extractor call latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"pass"},
		),
		Chunks: f.NewCounter(prometheus.CounterOpts{
			Name: "policyengine_chunks_total",
			Help: "Chunks produced by the segmenter",
		}),
		Pass2Candidates: f.NewCounter(prometheus.CounterOpts{
			Name: "policyengine_pass2_candidates_total",
			Help: "Chunks promoted to the second extraction pass",
		}),
		ItemsAccepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyengine_items_accepted_total",
				Help: "Items accepted by the quality gate",
			},
			[]string{"kind"},
		),
		ItemsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyengine_items_rejected_total",
				Help: "Items rejected by the quality gate",
			},
			[]string{"kind"},
		),
		Conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyengine_conflicts_total",
				Help: "Conflicts detected by reconciliation",
			},
			[]string{"type", "severity"},
		),
		Jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyengine_jobs_total",
				Help: "Extraction jobs by final status",
			},
			[]string{"status"},
		),
	}
}

// ObserveCall records one extractor call
func (m *Metrics) ObserveCall(pass, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionCalls.WithLabelValues(pass, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(pass).Observe(seconds)
}

// AddChunks counts segmenter output
func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.Chunks.Add(float64(n))
}

// AddPass2Candidates counts promoted chunks
func (m *Metrics) AddPass2Candidates(n int) {
	if m == nil {
		return
	}
	m.Pass2Candidates.Add(float64(n))
}

// Gate records one quality gate decision
func (m *Metrics) Gate(kind string, accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.ItemsAccepted.WithLabelValues(kind).Inc()
		return
	}
	m.ItemsRejected.WithLabelValues(kind).Inc()
}

// Conflict records one detected conflict
func (m *Metrics) Conflict(conflictType, severity string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(conflictType, severity).Inc()
}

// Job records a finished job
func (m *Metrics) Job(status string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(status).Inc()
}

// Handler exposes the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
