package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// collectLimit bounds how many run summaries one collection reads.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of ranking health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal        int     `json:"runs_total"`
	CandidatesRanked int     `json:"candidates_ranked"`
	ProfilesExcluded int     `json:"profiles_excluded"`
	ExclusionRate    float64 `json:"exclusion_rate"`
	AvgCandidates    float64 `json:"avg_candidates"`

	// Embedding metrics (since process start).
	EmbeddingCalls    int64   `json:"embedding_calls"`
	EmbeddingFailures int64   `json:"embedding_failures"`
	EmbeddingFailRate float64 `json:"embedding_fail_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// EmbeddingStatser reports cumulative embedding call counts. *Metrics
// implements it.
type EmbeddingStatser interface {
	EmbeddingStats() (total, failed int64)
}

// Collector gathers metrics from the run store and embedding counters.
type Collector struct {
	store store.Store
	embed EmbeddingStatser
}

// NewCollector creates a new metrics collector. embed may be nil.
func NewCollector(st store.Store, embed EmbeddingStatser) *Collector {
	return &Collector{store: st, embed: embed}
}

// Collect gathers a snapshot of ranking metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		// Newest first.
		if r.CreatedAt.Before(cutoff) {
			break
		}
		snap.RunsTotal++
		snap.CandidatesRanked += r.CandidateCount
		snap.ProfilesExcluded += r.ExcludedCount
	}

	if seen := snap.CandidatesRanked + snap.ProfilesExcluded; seen > 0 {
		snap.ExclusionRate = float64(snap.ProfilesExcluded) / float64(seen)
	}
	if snap.RunsTotal > 0 {
		snap.AvgCandidates = float64(snap.CandidatesRanked) / float64(snap.RunsTotal)
	}

	if c.embed != nil {
		snap.EmbeddingCalls, snap.EmbeddingFailures = c.embed.EmbeddingStats()
		if snap.EmbeddingCalls > 0 {
			snap.EmbeddingFailRate = float64(snap.EmbeddingFailures) / float64(snap.EmbeddingCalls)
		}
	}

	return snap, nil
}
