package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/config"
	"github.com/sells-group/sitecheck/internal/model"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		StateCounts: map[model.ClaimState]int{
			model.StateValid:   120,
			model.StatePending: 8,
			model.StateError:   3,
		},
		DLQDepth:   2,
		StaleAfter: time.Hour,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_StaleClaims(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		StaleClaims: []model.WebsiteClaim{
			{BusinessID: "b1", State: model.StateDiscoveryQueued},
			{BusinessID: "b2", State: model.StateDiscoveryInProgress},
		},
		StaleAfter: 90 * time.Minute,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleClaims, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2 claim(s) stuck")
	assert.Equal(t, []string{"b1", "b2"}, alerts[0].Details["business_ids"])
}

func TestAlerter_Evaluate_DLQBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		DLQDepth:   40,
		StaleAfter: time.Hour,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDLQBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "depth 40")
}

func TestAlerter_Evaluate_ErrorBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		StateCounts: map[model.ClaimState]int{
			model.StateError: 75,
		},
		StaleAfter: time.Hour,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertErrorBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "75 claim(s)")
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		StateCounts: map[model.ClaimState]int{
			model.StateError: 60,
		},
		StaleClaims: []model.WebsiteClaim{
			{BusinessID: "b1", State: model.StateDiscoveryQueued},
		},
		DLQDepth:   30,
		StaleAfter: time.Hour,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, al := range alerts {
		types[al.Type] = true
	}
	assert.True(t, types[AlertStaleClaims])
	assert.True(t, types[AlertDLQBacklog])
	assert.True(t, types[AlertErrorBacklog])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertStaleClaims, Severity: "high", Message: "test alert 1"},
		{Type: AlertDLQBacklog, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertStaleClaims, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertStaleClaims, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}
