// Package monitoring exports ranking metrics to Prometheus and raises
// webhook alerts when recent runs look unhealthy.
package monitoring

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/embed"
	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
)

// Metric names.
const (
	MetricRunsTotal             = "ranker_runs_total"
	MetricRunDuration           = "ranker_run_duration_seconds"
	MetricCandidatesRanked      = "ranker_candidates_ranked_total"
	MetricProfilesExcluded      = "ranker_profiles_excluded_total"
	MetricDegradations          = "ranker_degradations_total"
	MetricEmbeddingCalls        = "ranker_embedding_calls_total"
	MetricEmbeddingCallDuration = "ranker_embedding_call_duration_seconds"
)

// Run status labels.
const (
	StatusSuccess        = "success"
	StatusCanceled       = "canceled"
	StatusInvalidWeights = "invalid_weights"
	StatusError          = "error"
)

// Metrics holds the ranker's Prometheus collectors. It implements
// ranking.Observer. All methods are safe for concurrent use.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	candidatesRanked  prometheus.Counter
	profilesExcluded  *prometheus.CounterVec
	degradations      *prometheus.CounterVec
	embeddingCalls    *prometheus.CounterVec
	embeddingDuration prometheus.Histogram

	embedTotal    atomic.Int64
	embedFailures atomic.Int64
}

var _ ranking.Observer = (*Metrics)(nil)

// NewMetrics creates unregistered collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Ranking runs by completion status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRunDuration,
			Help:    "Wall time of ranking runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		candidatesRanked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCandidatesRanked,
			Help: "Candidates placed in a ranking",
		}),
		profilesExcluded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricProfilesExcluded,
				Help: "Profiles dropped from a ranking by reason",
			},
			[]string{"reason"},
		),
		degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDegradations,
				Help: "Sub-score degradations by factor and reason",
			},
			[]string{"factor", "reason"},
		),
		embeddingCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEmbeddingCalls,
				Help: "Embedding capability calls by outcome",
			},
			[]string{"outcome"},
		),
		embeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricEmbeddingCallDuration,
			Help:    "Latency of embedding capability calls in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return eris.Wrap(err, "monitoring: register collector")
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.candidatesRanked,
		m.profilesExcluded,
		m.degradations,
		m.embeddingCalls,
		m.embeddingDuration,
	}
}

// RunCompleted records a successful ranking.
func (m *Metrics) RunCompleted(res *ranking.Result, d time.Duration) {
	m.runsTotal.WithLabelValues(StatusSuccess).Inc()
	m.runDuration.Observe(d.Seconds())
	m.candidatesRanked.Add(float64(len(res.Candidates)))

	for _, ex := range res.Excluded {
		m.profilesExcluded.WithLabelValues(ExclusionLabel(ex)).Inc()
	}
	for _, c := range res.Candidates {
		for _, dg := range c.Degradations {
			m.degradations.WithLabelValues(dg.Factor, dg.Reason).Inc()
		}
	}
}

// RunFailed records a ranking that returned an error.
func (m *Metrics) RunFailed(err error, d time.Duration) {
	m.runsTotal.WithLabelValues(FailureStatus(err)).Inc()
	m.runDuration.Observe(d.Seconds())
}

// ObserveEmbedding records one guarded embedding call. Its signature
// matches embed.GuardConfig.Observe.
func (m *Metrics) ObserveEmbedding(outcome string, d time.Duration) {
	m.embeddingCalls.WithLabelValues(outcome).Inc()
	m.embeddingDuration.Observe(d.Seconds())

	m.embedTotal.Add(1)
	if outcome != embed.OutcomeOK && outcome != embed.OutcomeCanceled {
		m.embedFailures.Add(1)
	}
}

// EmbeddingStats returns the total and failed embedding calls seen since
// the process started. Canceled calls count toward the total only.
func (m *Metrics) EmbeddingStats() (total, failed int64) {
	return m.embedTotal.Load(), m.embedFailures.Load()
}

// FailureStatus maps a ranking error to a run status label.
func FailureStatus(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	case eris.Is(err, model.ErrInvalidWeights):
		return StatusInvalidWeights
	default:
		return StatusError
	}
}

// ExclusionLabel reduces an exclusion reason to a low-cardinality label.
func ExclusionLabel(ex model.Exclusion) string {
	switch {
	case ex.Reason == ranking.ExcludedDuplicate:
		return "duplicate"
	case strings.HasPrefix(ex.Reason, ranking.ExcludedInvalid):
		return "invalid"
	default:
		return "other"
	}
}
