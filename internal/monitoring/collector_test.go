package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/model"
)

type stubQuerier struct {
	counts   map[model.ClaimState]int
	stale    []model.WebsiteClaim
	dlqDepth int
	err      error

	staleStates []model.ClaimState
	staleCutoff time.Duration
}

func (s *stubQuerier) CountByState(_ context.Context) (map[model.ClaimState]int, error) {
	return s.counts, s.err
}

func (s *stubQuerier) ListStale(_ context.Context, states []model.ClaimState, olderThan time.Duration, _ int) ([]model.WebsiteClaim, error) {
	s.staleStates = states
	s.staleCutoff = olderThan
	return s.stale, s.err
}

func (s *stubQuerier) CountDLQ(_ context.Context) (int, error) {
	return s.dlqDepth, s.err
}

func TestCollector_Collect(t *testing.T) {
	q := &stubQuerier{
		counts: map[model.ClaimState]int{
			model.StateValid:           42,
			model.StateDiscoveryQueued: 3,
			model.StateError:           1,
		},
		stale: []model.WebsiteClaim{
			{BusinessID: "b9", State: model.StateDiscoveryInProgress},
		},
		dlqDepth: 7,
	}

	snap, err := NewCollector(q).Collect(context.Background(), 2*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 42, snap.StateCounts[model.StateValid])
	assert.Equal(t, 1, snap.ErrorCount())
	assert.Equal(t, 7, snap.DLQDepth)
	assert.Equal(t, 2*time.Hour, snap.StaleAfter)
	require.Len(t, snap.StaleClaims, 1)
	assert.Equal(t, "b9", snap.StaleClaims[0].BusinessID)
	assert.False(t, snap.CollectedAt.IsZero())

	// Only in-flight states count toward staleness.
	assert.Equal(t, inFlightStates, q.staleStates)
	assert.Equal(t, 2*time.Hour, q.staleCutoff)
}

func TestCollector_Collect_StoreError(t *testing.T) {
	q := &stubQuerier{err: errors.New("database locked")}

	snap, err := NewCollector(q).Collect(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Nil(t, snap)
}
