package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/embed"
	"github.com/sells-group/nonprofit-ranker/internal/monitoring"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// rankEnv holds the engine and the optional run store shared by the
// rank, compare and serve commands.
type rankEnv struct {
	Holder  *ranking.SettingsHolder
	Engine  *ranking.Engine
	Metrics *monitoring.Metrics // may be nil
	Store   store.Store         // may be nil
}

// Close releases resources held by the environment.
func (re *rankEnv) Close() {
	if re.Store != nil {
		_ = re.Store.Close()
	}
}

// initEngine validates cfg for mode and builds the settings snapshot,
// the guarded embedder and the engine. A non-nil metrics collector
// observes runs and embedding calls.
func initEngine(ctx context.Context, c *config.Config, mode string, metrics *monitoring.Metrics) (*rankEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	settings, err := ranking.SettingsFromConfig(c)
	if err != nil {
		return nil, err
	}
	holder, err := ranking.NewSettingsHolder(settings)
	if err != nil {
		return nil, err
	}

	var observe func(string, time.Duration)
	opts := []ranking.Option{}
	if metrics != nil {
		observe = metrics.ObserveEmbedding
		opts = append(opts, ranking.WithObserver(metrics))
	}

	embedder, err := embed.New(ctx, c.Embedding, observe)
	if err != nil {
		return nil, eris.Wrap(err, "init embedder")
	}

	zap.L().Debug("engine ready",
		zap.String("embedding_provider", c.Embedding.Provider),
		zap.String("config_hash", settings.Hash()),
		zap.Int("workers", settings.Workers),
	)

	return &rankEnv{
		Holder:  holder,
		Engine:  ranking.NewEngine(holder, embedder, opts...),
		Metrics: metrics,
	}, nil
}

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// reloadSettings rebuilds the settings snapshot from c and swaps it into
// holder. The previous snapshot stays active when c is invalid.
func reloadSettings(holder *ranking.SettingsHolder, c *config.Config) error {
	settings, err := ranking.SettingsFromConfig(c)
	if err != nil {
		return err
	}
	if err := holder.Replace(settings); err != nil {
		return err
	}
	zap.L().Info("ranking settings reloaded", zap.String("config_hash", settings.Hash()))
	return nil
}
