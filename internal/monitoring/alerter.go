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

	"github.com/sells-group/sitecheck/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStaleClaims  AlertType = "stale_claims"
	AlertDLQBacklog   AlertType = "dlq_backlog"
	AlertErrorBacklog AlertType = "error_backlog"
)

// Backlog thresholds. A handful of dead-lettered or errored claims is
// normal operation; sustained growth is not.
const (
	dlqAlertDepth   = 25
	errorAlertDepth = 50
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against thresholds and sends
// alerts via webhook when thresholds are breached.
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

	if n := len(snap.StaleClaims); n > 0 {
		ids := make([]string, 0, n)
		for _, c := range snap.StaleClaims {
			ids = append(ids, c.BusinessID)
		}
		alerts = append(alerts, Alert{
			Type:     AlertStaleClaims,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d claim(s) stuck in discovery for over %s",
				n, snap.StaleAfter,
			),
			Details: map[string]any{
				"stale_count":  n,
				"stale_after":  snap.StaleAfter.String(),
				"business_ids": ids,
			},
			Timestamp: now,
		})
	}

	if snap.DLQDepth > dlqAlertDepth {
		alerts = append(alerts, Alert{
			Type:     AlertDLQBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Dead letter queue depth %d exceeds %d",
				snap.DLQDepth, dlqAlertDepth,
			),
			Details: map[string]any{
				"dlq_depth": snap.DLQDepth,
				"threshold": dlqAlertDepth,
			},
			Timestamp: now,
		})
	}

	if errs := snap.ErrorCount(); errs > errorAlertDepth {
		alerts = append(alerts, Alert{
			Type:     AlertErrorBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d claim(s) in error state exceeds %d",
				errs, errorAlertDepth,
			),
			Details: map[string]any{
				"error_count": errs,
				"threshold":   errorAlertDepth,
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
