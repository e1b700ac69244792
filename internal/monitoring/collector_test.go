package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	runs    []model.Run
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []model.Run
	for _, r := range m.runs {
		if filter.ConfigHash != "" && r.ConfigHash != filter.ConfigHash {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

func (m *mockStore) SaveRun(_ context.Context, run model.Run) (*model.Run, error) { return &run, nil }
func (m *mockStore) GetRun(context.Context, string) (*model.Run, error)           { return nil, store.ErrRunNotFound }
func (m *mockStore) DeleteRun(context.Context, string) error                      { return nil }
func (m *mockStore) Ping(context.Context) error                                   { return nil }
func (m *mockStore) Migrate(context.Context) error                                { return nil }
func (m *mockStore) Close() error                                                 { return nil }

type fixedStats struct{ total, failed int64 }

func (f fixedStats) EmbeddingStats() (int64, int64) { return f.total, f.failed }

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{runs: []model.Run{
		{ID: "r3", CandidateCount: 8, ExcludedCount: 2, CreatedAt: now.Add(-time.Hour)},
		{ID: "r2", CandidateCount: 4, ExcludedCount: 0, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "r1", CandidateCount: 50, ExcludedCount: 50, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	c := NewCollector(st, fixedStats{total: 20, failed: 5})
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.RunsTotal)
	assert.Equal(t, 12, snap.CandidatesRanked)
	assert.Equal(t, 2, snap.ProfilesExcluded)
	assert.InDelta(t, 2.0/14.0, snap.ExclusionRate, 1e-9)
	assert.InDelta(t, 6.0, snap.AvgCandidates, 1e-9)
	assert.Equal(t, int64(20), snap.EmbeddingCalls)
	assert.InDelta(t, 0.25, snap.EmbeddingFailRate, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_Collect_Empty(t *testing.T) {
	c := NewCollector(&mockStore{}, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.ExclusionRate)
	assert.Zero(t, snap.AvgCandidates)
	assert.Zero(t, snap.EmbeddingCalls)
}

func TestCollector_Collect_ListError(t *testing.T) {
	c := NewCollector(&mockStore{listErr: errors.New("db down")}, nil)
	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestCollector_Collect_FeedsAlerter(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{runs: []model.Run{
		{ID: "r1", CandidateCount: 10, ExcludedCount: 30, CreatedAt: now},
	}}

	snap, err := NewCollector(st, nil).Collect(context.Background(), 1)
	require.NoError(t, err)

	alerts := NewAlerter(thresholds()).Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExclusionRate, alerts[0].Type)
}
