// Package metrics exposes per-stage counters for one run of the funnel.
// Metrics live on a run-scoped registry rather than the global default so
// that tests and repeated runs in one process do not collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablefunnel"

// Candidate outcomes.
const (
	CandidateFetched        = "fetched"
	CandidateContentType    = "unsupported_content_type"
	CandidateFetchError     = "fetch_error"
	CandidateBudgetExceeded = "budget_exceeded"
	CandidateLate           = "late"
)

// Page outcomes.
const (
	PageNoMatch        = "no_match"
	PageBelowThreshold = "below_threshold"
	PageAccepted       = "accepted"
	PageEmbeddingError = "embedding_error"
)

// Funnel groups the collectors of one run. A nil *Funnel is valid and records nothing.
type Funnel struct {
	Registry *prometheus.Registry

	Candidates        *prometheus.CounterVec
	Documents         *prometheus.CounterVec
	LexicalScore      prometheus.Histogram
	Pages             *prometheus.CounterVec
	SemanticScore     prometheus.Histogram
	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration prometheus.Histogram
	Tables            *prometheus.CounterVec
	Faults            *prometheus.CounterVec
	SessionTimeouts   prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Funnel {
	f := &Funnel{
		Registry: prometheus.NewRegistry(),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate URLs seen by the acquisition session, by outcome",
		}, []string{"outcome"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents evaluated by the lexical gate, by verdict",
		}, []string{"verdict"}),
		LexicalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lexical_score",
			Help:      "Distribution of document lexical relevance scores",
			Buckets:   []float64{0, 0.1, 0.3, 0.5, 1, 2, 5, 10},
		}),
		Pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages evaluated by the page selector, by outcome",
		}, []string{"outcome"}),
		SemanticScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "semantic_score",
			Help:      "Distribution of page cosine similarity scores",
			Buckets:   []float64{-0.5, 0, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		EmbeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding requests, by status",
		}, []string{"status"}),
		EmbeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_total",
			Help:      "Tables handled by the extractor, by outcome",
		}, []string{"outcome"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Per-item faults, by kind and stage",
		}, []string{"kind", "stage"}),
		SessionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_timeouts_total",
			Help:      "Acquisition sessions that ended at the deadline",
		}),
	}
	f.Registry.MustRegister(
		f.Candidates, f.Documents, f.LexicalScore, f.Pages, f.SemanticScore,
		f.EmbeddingRequests, f.EmbeddingDuration, f.Tables, f.Faults, f.SessionTimeouts,
	)
	return f
}

func (f *Funnel) Candidate(outcome string) {
	if f == nil {
		return
	}
	f.Candidates.WithLabelValues(outcome).Inc()
}

func (f *Funnel) Document(accepted bool, score float64) {
	if f == nil {
		return
	}
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
	}
	f.Documents.WithLabelValues(verdict).Inc()
	f.LexicalScore.Observe(score)
}

// Page records a page outcome; score is observed only when the page was scored.
func (f *Funnel) Page(outcome string, scored bool, score float64) {
	if f == nil {
		return
	}
	f.Pages.WithLabelValues(outcome).Inc()
	if scored {
		f.SemanticScore.Observe(score)
	}
}

func (f *Funnel) Embedding(status string, d time.Duration) {
	if f == nil {
		return
	}
	f.EmbeddingRequests.WithLabelValues(status).Inc()
	if d > 0 {
		f.EmbeddingDuration.Observe(d.Seconds())
	}
}

func (f *Funnel) Table(outcome string) {
	if f == nil {
		return
	}
	f.Tables.WithLabelValues(outcome).Inc()
}

func (f *Funnel) Fault(kind, stage string) {
	if f == nil {
		return
	}
	f.Faults.WithLabelValues(kind, stage).Inc()
}

func (f *Funnel) SessionTimeout() {
	if f == nil {
		return
	}
	f.SessionTimeouts.Inc()
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (f *Funnel) WriteTextfile(path string) error {
	if f == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, f.Registry)
}
