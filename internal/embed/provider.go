package embed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/resilience"
	"github.com/sells-group/nonprofit-ranker/pkg/gemini"
	"github.com/sells-group/nonprofit-ranker/pkg/jina"
)

// NewProvider builds the configured provider without a guard.
func NewProvider(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "local":
		return NewHashing(cfg.Dimensions), nil
	case "jina":
		if cfg.JinaKey == "" {
			return nil, eris.New("embed: jina provider requires embedding.jina_key")
		}
		opts := []jina.Option{jina.WithModel(cfg.Model), jina.WithDimensions(cfg.Dimensions)}
		if cfg.JinaBaseURL != "" {
			opts = append(opts, jina.WithBaseURL(cfg.JinaBaseURL))
		}
		return Jina{Client: jina.NewClient(cfg.JinaKey, opts...)}, nil
	case "gemini":
		e, err := gemini.New(ctx, cfg.GeminiKey, gemini.WithModel(cfg.Model), gemini.WithDimensions(cfg.Dimensions))
		if err != nil {
			return nil, eris.Wrap(err, "embed: create gemini provider")
		}
		return e, nil
	default:
		return nil, eris.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}

// New builds the configured provider wrapped in a Guard. observe may be nil.
func New(ctx context.Context, cfg config.EmbeddingConfig, observe func(string, time.Duration)) (*Guard, error) {
	inner, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewGuard(inner, GuardConfigFrom(cfg, observe)), nil
}

// GuardConfigFrom maps flat configuration values onto a GuardConfig.
func GuardConfigFrom(cfg config.EmbeddingConfig, observe func(string, time.Duration)) GuardConfig {
	gc := GuardConfig{
		Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Retry:   resilience.PolicyFromConfig(cfg.MaxAttempts, cfg.InitialBackoffMs, cfg.MaxBackoffMs),
		Observe: observe,
	}
	gc.Retry.OnRetry = resilience.LogRetry("embedding")

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		gc.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	provider := cfg.Provider
	gc.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         time.Duration(cfg.BreakerCooldownSecs) * time.Second,
		OnStateChange: func(from, to resilience.BreakerState) {
			zap.L().Warn("embed: circuit breaker state change",
				zap.String("provider", provider),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return gc
}
