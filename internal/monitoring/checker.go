package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/config"
)

// DefaultCheckInterval is used when the configured interval is not positive.
const DefaultCheckInterval = 5 * time.Minute

// Checker periodically snapshots ranking health and forwards threshold
// breaches to the Alerter. An alert type is sent once when it starts firing
// and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int

	mu     sync.Mutex
	firing map[AlertType]bool
	last   *MetricsSnapshot
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
		firing:    make(map[AlertType]bool),
	}
}

// Interval returns the effective check interval.
func (c *Checker) Interval() time.Duration { return c.interval }

// Last returns the most recent snapshot, or nil before the first check.
func (c *Checker) Last() *MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Run checks once immediately, then on every tick until ctx is canceled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			if _, err := c.Check(ctx); err != nil {
				log.Error("monitoring: collect snapshot", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects one snapshot, evaluates it and sends newly firing alerts.
// It returns the alerts that were newly raised.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("monitoring: ranking snapshot",
		zap.Int("runs", snap.RunsTotal),
		zap.Int("candidates_ranked", snap.CandidatesRanked),
		zap.Int("profiles_excluded", snap.ProfilesExcluded),
		zap.Float64("exclusion_rate", snap.ExclusionRate),
		zap.Int64("embedding_calls", snap.EmbeddingCalls),
		zap.Float64("embedding_fail_rate", snap.EmbeddingFailRate),
	)

	raised := c.transition(snap, c.alerter.Evaluate(snap))
	if len(raised) == 0 {
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, raised)
	zap.L().Warn("monitoring: ranking health degraded",
		zap.Int("alerts_raised", len(raised)),
		zap.Int("alerts_sent", sent),
		zap.Float64("exclusion_rate", snap.ExclusionRate),
		zap.Float64("embedding_fail_rate", snap.EmbeddingFailRate),
	)
	return raised, nil
}

// transition records snap and the currently firing alert types, returning
// only the alerts that were not firing on the previous check.
func (c *Checker) transition(snap *MetricsSnapshot, alerts []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = snap
	now := make(map[AlertType]bool, len(alerts))
	var raised []Alert
	for _, a := range alerts {
		now[a.Type] = true
		if !c.firing[a.Type] {
			raised = append(raised, a)
		}
	}
	for t := range c.firing {
		if !now[t] {
			zap.L().Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.firing = now
	return raised
}
