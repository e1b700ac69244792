package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertExclusionRate     AlertType = "exclusion_rate"
	AlertEmbeddingFailures AlertType = "embedding_failures"
)

// Minimum sample sizes before a rate can trigger an alert.
const (
	minProfilesForRate   = 20
	minEmbeddingsForRate = 10
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	seen := snap.CandidatesRanked + snap.ProfilesExcluded
	if a.cfg.ExclusionRateThreshold > 0 && seen >= minProfilesForRate && snap.ExclusionRate > a.cfg.ExclusionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExclusionRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Profile exclusion rate %.1f%% exceeds threshold %.1f%% (%d excluded / %d submitted in last %dh)",
				snap.ExclusionRate*100, a.cfg.ExclusionRateThreshold*100,
				snap.ProfilesExcluded, seen, snap.LookbackHours,
			),
			Details: map[string]any{
				"exclusion_rate": snap.ExclusionRate,
				"threshold":      a.cfg.ExclusionRateThreshold,
				"excluded":       snap.ProfilesExcluded,
				"runs":           snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if a.cfg.EmbeddingFailureThreshold > 0 && snap.EmbeddingCalls >= minEmbeddingsForRate &&
		snap.EmbeddingFailRate > a.cfg.EmbeddingFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEmbeddingFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"Embedding failure rate %.1f%% exceeds threshold %.1f%% (%d of %d calls degraded)",
				snap.EmbeddingFailRate*100, a.cfg.EmbeddingFailureThreshold*100,
				snap.EmbeddingFailures, snap.EmbeddingCalls,
			),
			Details: map[string]any{
				"failure_rate": snap.EmbeddingFailRate,
				"threshold":    a.cfg.EmbeddingFailureThreshold,
				"failed":       snap.EmbeddingFailures,
				"calls":        snap.EmbeddingCalls,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
