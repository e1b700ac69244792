// Package config loads ranker configuration from config.yaml, .env and
// RANKER_* environment variables.
package config

import (
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Ranking    RankingConfig    `yaml:"ranking" mapstructure:"ranking"`
	Mission    MissionConfig    `yaml:"mission" mapstructure:"mission"`
	ROI        ROIConfig        `yaml:"roi" mapstructure:"roi"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RankingConfig holds the composite weights and worker pool size.
type RankingConfig struct {
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights"`
	Workers int                `yaml:"workers" mapstructure:"workers"`
}

// MissionConfig points at the mission document.
type MissionConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// ScaleConfig is a min-max reference range.
type ScaleConfig struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// ROIConfig holds ROI reference scales and valuation assumptions. Zero
// values keep the calculator defaults.
type ROIConfig struct {
	Baseline              float64                `yaml:"baseline" mapstructure:"baseline"`
	Weights               map[string]float64     `yaml:"weights" mapstructure:"weights"`
	Scales                map[string]ScaleConfig `yaml:"scales" mapstructure:"scales"`
	VolunteerHourValue    float64                `yaml:"volunteer_hour_value" mapstructure:"volunteer_hour_value"`
	BeneficiaryValue      float64                `yaml:"beneficiary_value" mapstructure:"beneficiary_value"`
	CostPerBeneficiary    float64                `yaml:"cost_per_beneficiary" mapstructure:"cost_per_beneficiary"`
	TargetProgramRatio    float64                `yaml:"target_program_ratio" mapstructure:"target_program_ratio"`
	SharedServicesCapture float64                `yaml:"shared_services_capture" mapstructure:"shared_services_capture"`
	MaxMultiplier         float64                `yaml:"max_multiplier" mapstructure:"max_multiplier"`
}

// EmbeddingConfig selects and bounds the embedding provider.
type EmbeddingConfig struct {
	Provider            string  `yaml:"provider" mapstructure:"provider"`
	Model               string  `yaml:"model" mapstructure:"model"`
	Dimensions          int     `yaml:"dimensions" mapstructure:"dimensions"`
	JinaKey             string  `yaml:"jina_key" mapstructure:"jina_key"`
	JinaBaseURL         string  `yaml:"jina_base_url" mapstructure:"jina_base_url"`
	GeminiKey           string  `yaml:"gemini_key" mapstructure:"gemini_key"`
	TimeoutMs           int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	RatePerSecond       float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	WebhookURL                string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs         int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours       int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ExclusionRateThreshold    float64 `yaml:"exclusion_rate_threshold" mapstructure:"exclusion_rate_threshold"`
	EmbeddingFailureThreshold float64 `yaml:"embedding_failure_threshold" mapstructure:"embedding_failure_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Loader reads configuration and can watch the config file for changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults, the optional config.yaml in
// the working directory, .env, and RANKER_* overrides.
func NewLoader() *Loader {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RANKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ranking.weights", map[string]float64{
		"mission":                 0.35,
		"roi":                     0.25,
		"financial_stability":     0.15,
		"organizational_capacity": 0.15,
		"data_quality":            0.10,
	})
	v.SetDefault("ranking.workers", 0)
	v.SetDefault("mission.config_path", "")
	v.SetDefault("roi.baseline", 0.5)
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("embedding.jina_base_url", "https://api.jina.ai")
	v.SetDefault("embedding.timeout_ms", 5000)
	v.SetDefault("embedding.rate_per_second", 10.0)
	v.SetDefault("embedding.burst", 5)
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.initial_backoff_ms", 200)
	v.SetDefault("embedding.max_backoff_ms", 5000)
	v.SetDefault("embedding.breaker_threshold", 5)
	v.SetDefault("embedding.breaker_cooldown_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ranker.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.exclusion_rate_threshold", 0.25)
	v.SetDefault("monitoring.embedding_failure_threshold", 0.10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	return &Loader{v: v}
}

// SetConfigFile reads from path instead of searching for config.yaml.
func (l *Loader) SetConfigFile(path string) {
	if path != "" {
		l.v.SetConfigFile(path)
	}
}

// Load reads the config file (if any) and returns the merged configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Watch calls onChange with the re-read configuration each time the config
// file changes. Reload errors are logged and the change is skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	var mu sync.Mutex
	l.v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		cfg, err := l.unmarshal()
		if err != nil {
			zap.L().Error("config: reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		zap.L().Info("config: reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load reads configuration from the working directory and environment.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks the settings required by a command mode ("rank",
// "serve" or "runs"). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "rank":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateMonitoring()...)
	case "runs":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Ranking.Workers < 0 {
		errs = append(errs, "ranking.workers must be >= 0")
	}
	switch c.Embedding.Provider {
	case "local", "":
	case "jina":
		if c.Embedding.JinaKey == "" {
			errs = append(errs, "embedding.jina_key is required for the jina provider")
		}
	case "gemini":
		if c.Embedding.GeminiKey == "" {
			errs = append(errs, "embedding.gemini_key is required for the gemini provider")
		}
	default:
		errs = append(errs, "embedding.provider must be one of local, jina, gemini")
	}
	if c.Embedding.TimeoutMs < 0 {
		errs = append(errs, "embedding.timeout_ms must be >= 0")
	}
	if c.ROI.Baseline < 0 || c.ROI.Baseline > 1 {
		errs = append(errs, "roi.baseline must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateMonitoring() []string {
	var errs []string
	if c.Monitoring.ExclusionRateThreshold < 0 || c.Monitoring.ExclusionRateThreshold > 1 {
		errs = append(errs, "monitoring.exclusion_rate_threshold must be between 0 and 1")
	}
	if c.Monitoring.EmbeddingFailureThreshold < 0 || c.Monitoring.EmbeddingFailureThreshold > 1 {
		errs = append(errs, "monitoring.embedding_failure_threshold must be between 0 and 1")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}
