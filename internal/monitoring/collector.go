// Package monitoring watches the claim population for stuck work: claims
// parked in an in-flight state past the staleness window, dead-letter
// backlog, and error-state growth. Alerts go to a webhook; optionally the
// checker resets stale claims back into the queueable states.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitecheck/internal/model"
)

// inFlightStates are the states a claim passes through while a task is
// running. A claim stuck here past the staleness window indicates a lost
// worker or an orphaned task.
var inFlightStates = []model.ClaimState{
	model.StateDiscoveryQueued,
	model.StateDiscoveryInProgress,
}

// MetricsSnapshot holds a point-in-time view of the claim population.
type MetricsSnapshot struct {
	StateCounts map[model.ClaimState]int `json:"state_counts"`

	// Claims stuck in an in-flight state past the staleness window.
	StaleClaims []model.WebsiteClaim `json:"stale_claims,omitempty"`

	// DLQ depth.
	DLQDepth int `json:"dlq_depth"`

	StaleAfter  time.Duration `json:"stale_after"`
	CollectedAt time.Time     `json:"collected_at"`
}

// ErrorCount returns the number of claims in the error state.
func (s *MetricsSnapshot) ErrorCount() int {
	return s.StateCounts[model.StateError]
}

// ClaimQuerier abstracts the store methods the collector reads from.
// Satisfied by store.Store.
type ClaimQuerier interface {
	CountByState(ctx context.Context) (map[model.ClaimState]int, error)
	ListStale(ctx context.Context, states []model.ClaimState, olderThan time.Duration, limit int) ([]model.WebsiteClaim, error)
	CountDLQ(ctx context.Context) (int, error)
}

// Collector gathers metrics from the claim store.
type Collector struct {
	store ClaimQuerier
}

// NewCollector creates a new metrics collector.
func NewCollector(st ClaimQuerier) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of claim-population metrics. Claims in an
// in-flight state whose last update is older than staleAfter are reported
// as stale.
func (c *Collector) Collect(ctx context.Context, staleAfter time.Duration) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		StaleAfter:  staleAfter,
		CollectedAt: time.Now().UTC(),
	}

	counts, err := c.store.CountByState(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count claims by state")
	}
	snap.StateCounts = counts

	stale, err := c.store.ListStale(ctx, inFlightStates, staleAfter, 500)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list stale claims")
	}
	snap.StaleClaims = stale

	dlqCount, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = dlqCount

	return snap, nil
}
