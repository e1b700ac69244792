package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/model"
)

func checkerConfig() config.MonitoringConfig {
	cfg := thresholds()
	cfg.LookbackWindowHours = 24
	return cfg
}

func excludingStore(candidates, excluded int) *mockStore {
	return &mockStore{runs: []model.Run{{
		ID:             "r1",
		CandidateCount: candidates,
		ExcludedCount:  excluded,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}}}
}

func TestChecker_RaisesOnceUntilCleared(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := checkerConfig()
	cfg.WebhookURL = srv.URL
	st := excludingStore(10, 30)
	checker := NewChecker(NewCollector(st, nil), NewAlerter(cfg), cfg)

	raised, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, AlertExclusionRate, raised[0].Type)
	assert.Equal(t, int32(1), posts.Load())

	// Still breaching: nothing new is sent.
	raised, err = checker.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Equal(t, int32(1), posts.Load())

	// Recovers, then breaches again.
	st.runs[0].ExcludedCount = 0
	raised, err = checker.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Zero(t, checker.Last().ExclusionRate)

	st.runs[0].ExcludedCount = 30
	raised, err = checker.Check(context.Background())
	require.NoError(t, err)
	assert.Len(t, raised, 1)
	assert.Equal(t, int32(2), posts.Load())
}

func TestChecker_EmbeddingFailures(t *testing.T) {
	cfg := checkerConfig()
	checker := NewChecker(NewCollector(&mockStore{}, fixedStats{total: 40, failed: 20}), NewAlerter(cfg), cfg)

	raised, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, AlertEmbeddingFailures, raised[0].Type)
	assert.InDelta(t, 0.5, checker.Last().EmbeddingFailRate, 1e-9)
}

func TestChecker_CollectError(t *testing.T) {
	cfg := checkerConfig()
	checker := NewChecker(NewCollector(&mockStore{listErr: errors.New("db down")}, nil), NewAlerter(cfg), cfg)

	_, err := checker.Check(context.Background())
	assert.Error(t, err)
	assert.Nil(t, checker.Last())
}

func TestChecker_RunChecksImmediatelyAndStops(t *testing.T) {
	cfg := checkerConfig()
	cfg.CheckIntervalSecs = 3600
	checker := NewChecker(NewCollector(excludingStore(5, 0), nil), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, checker.Last().RunsTotal)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockStore{}, nil), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, DefaultCheckInterval, checker.Interval())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Nil(t, checker.Last(), "canceled before the first check")
}
