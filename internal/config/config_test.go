package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ranker.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 5000, cfg.Embedding.TimeoutMs)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.InDelta(t, 0.5, cfg.ROI.Baseline, 0.001)
	assert.InDelta(t, 0.35, cfg.Ranking.Weights["mission"], 0.001)
	assert.InDelta(t, 0.25, cfg.Ranking.Weights["roi"], 0.001)
	assert.InDelta(t, 0.15, cfg.Ranking.Weights["financial_stability"], 0.001)
	assert.InDelta(t, 0.15, cfg.Ranking.Weights["organizational_capacity"], 0.001)
	assert.InDelta(t, 0.10, cfg.Ranking.Weights["data_quality"], 0.001)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.25, cfg.Monitoring.ExclusionRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/ranker
log:
  level: debug
  format: console
server:
  port: 9090
roi:
  scales:
    resource_sharing:
      min: 0
      max: 250000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 250000, cfg.ROI.Scales["resource_sharing"].Max, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("RANKER_STORE_DRIVER", "postgres")
	t.Setenv("RANKER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RANKER_EMBEDDING_TIMEOUT_MS=1234\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("RANKER_EMBEDDING_TIMEOUT_MS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Embedding.TimeoutMs)
}

func TestLoader_SetConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "ranker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	l := NewLoader()
	l.SetConfigFile(path)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoader_Watch(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranking:\n  workers: 2\n"), 0o644))

	l := NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Ranking.Workers)

	changed := make(chan *Config, 4)
	l.Watch(func(c *Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("ranking:\n  workers: 6\n"), 0o644))

	require.Eventually(t, func() bool {
		select {
		case c := <-changed:
			return c.Ranking.Workers == 6
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "ranker.db"
	cfg.Embedding.Provider = "local"
	cfg.ROI.Baseline = 0.5
	return cfg
}

func TestValidateRank(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("rank"), "rank does not need a store")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRuns_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateEmbeddingProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Embedding.Provider = "jina"

	err := cfg.Validate("rank")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.jina_key is required")

	cfg.Embedding.JinaKey = "jina_key"
	assert.NoError(t, cfg.Validate("rank"))

	cfg.Embedding.Provider = "openai"
	err = cfg.Validate("rank")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.provider must be one of")
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	cfg.ROI.Baseline = 2

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "roi.baseline must be between 0 and 1")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateServe_MonitoringThresholds(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.ExclusionRateThreshold = 1.5
	cfg.Monitoring.EmbeddingFailureThreshold = -0.1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.exclusion_rate_threshold must be between 0 and 1")
	assert.Contains(t, err.Error(), "monitoring.embedding_failure_threshold must be between 0 and 1")

	assert.NoError(t, cfg.Validate("rank"), "rank ignores monitoring")
}
