package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/monitoring"
)

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Embedding.Provider = "local"
	c.Embedding.Dimensions = 32
	c.Server.Port = 8080
	c.Server.CORSOrigins = []string{"*"}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = "ranker.db"
	c.ROI.Baseline = 0.5
	return c
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
	assert.Equal(t, 0, resolvePort(0, 0))
}

func TestInitEngine(t *testing.T) {
	env, err := initEngine(context.Background(), testConfig(), "rank", monitoring.NewMetrics())
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Engine)
	assert.NotNil(t, env.Metrics)
	assert.Equal(t, env.Holder.Load().Hash(), env.Engine.Settings().Hash())
}

func TestInitEngine_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.Embedding.Provider = "openai"

	_, err := initEngine(context.Background(), c, "rank", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.provider")
}

func TestReloadSettings(t *testing.T) {
	c := testConfig()
	env, err := initEngine(context.Background(), c, "rank", nil)
	require.NoError(t, err)
	before := env.Holder.Load().Hash()

	c.Ranking.Weights = map[string]float64{
		"mission":                 0.5,
		"roi":                     0.2,
		"financial_stability":     0.1,
		"organizational_capacity": 0.1,
		"data_quality":            0.1,
	}
	require.NoError(t, reloadSettings(env.Holder, c))
	assert.NotEqual(t, before, env.Holder.Load().Hash())

	c.Ranking.Weights = map[string]float64{"mission": 2}
	assert.Error(t, reloadSettings(env.Holder, c))
	assert.InDelta(t, 0.5, env.Holder.Load().Weights.Of("mission"), 1e-9, "invalid reload keeps previous settings")
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	prev := cfg
	cfg = testConfig()
	t.Cleanup(func() { cfg = prev })

	env, err := initEngine(context.Background(), cfg, "rank", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	handler := buildRouter(env, prometheus.NewRegistry())
	port := getFreePort(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, handler, port)
	}()

	var ready bool
	for i := 0; i < 50; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			resp.Body.Close()
			ready = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
