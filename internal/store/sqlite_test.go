package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedBusiness(t *testing.T, st *SQLiteStore, id string) model.Business {
	t.Helper()
	b := model.Business{ID: id, Name: "Acme Plumbing", Phone: "+1 312 555 0100", City: "Chicago", State: "IL", Country: "US"}
	require.NoError(t, st.UpsertBusiness(context.Background(), b))
	return b
}

// --- Businesses ---

func TestSQLite_Business_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b := seedBusiness(t, st, "b1")

	got, err := st.GetBusiness(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.Name, got.Name)
	assert.Equal(t, b.Phone, got.Phone)

	// Upsert replaces the record.
	b.Name = "Acme Plumbing LLC"
	require.NoError(t, st.UpsertBusiness(ctx, b))
	got, err = st.GetBusiness(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing LLC", got.Name)
}

func TestSQLite_Business_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetBusiness(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Claims ---

func TestSQLite_Claim_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "b1")

	claim := &model.WebsiteClaim{
		BusinessID: "b1",
		WebsiteURL: "https://acme.com",
		State:      model.StatePending,
		URLSource:  model.SourceFeed,
		Country:    "US",
	}
	require.NoError(t, st.CreateClaim(ctx, claim))

	got, err := st.GetClaim(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://acme.com", got.WebsiteURL)
	assert.Equal(t, model.StatePending, got.State)
	assert.Equal(t, model.SourceFeed, got.URLSource)
	assert.Nil(t, got.LastValidatedAt)
	assert.Nil(t, got.LastValidationResult)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_Claim_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetClaim(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Claim_UpdateRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "b1")

	claim := &model.WebsiteClaim{
		BusinessID: "b1",
		WebsiteURL: "https://acme.com",
		State:      model.StatePending,
		URLSource:  model.SourceFeed,
	}
	require.NoError(t, st.CreateClaim(ctx, claim))

	now := time.Now().UTC().Truncate(time.Second)
	claim.State = model.StateValid
	claim.LastValidatedAt = &now
	claim.LastValidationResult = &model.ValidationResult{
		URL:            "https://acme.com",
		Verdict:        model.VerdictValid,
		Confidence:     0.95,
		Recommendation: model.RecommendKeepURL,
		ValidatedAt:    now,
	}
	claim.Metadata.RecordAttempt(model.DiscoveryAttempt{
		Method:      "external-search",
		AttemptedAt: now,
		Found:       true,
		URL:         "https://acme.com",
	})
	claim.Metadata.AppendValidation(claim.LastValidationResult)
	require.NoError(t, st.UpdateClaim(ctx, claim))

	got, err := st.GetClaim(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.StateValid, got.State)
	require.NotNil(t, got.LastValidatedAt)
	require.NotNil(t, got.LastValidationResult)
	assert.Equal(t, model.VerdictValid, got.LastValidationResult.Verdict)
	assert.True(t, got.Metadata.Attempted("external-search"))
	require.Len(t, got.Metadata.ValidationHistory, 1)
	assert.Equal(t, "https://acme.com", got.Metadata.ValidationHistory[0].URL)
}

func TestSQLite_Claim_UpdateMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateClaim(context.Background(), &model.WebsiteClaim{BusinessID: "ghost", State: model.StatePending})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Claim_ListByState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, state := range []model.ClaimState{model.StatePending, model.StatePending, model.StateValid} {
		id := string(rune('a' + i))
		seedBusiness(t, st, id)
		require.NoError(t, st.CreateClaim(ctx, &model.WebsiteClaim{BusinessID: id, State: state}))
	}

	pending, err := st.ListClaims(ctx, ClaimFilter{State: model.StatePending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	valid, err := st.ListClaims(ctx, ClaimFilter{State: model.StateValid})
	require.NoError(t, err)
	assert.Len(t, valid, 1)

	all, err := st.ListClaims(ctx, ClaimFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := st.ListClaims(ctx, ClaimFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Claim_ListStale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "b1")
	seedBusiness(t, st, "b2")

	require.NoError(t, st.CreateClaim(ctx, &model.WebsiteClaim{BusinessID: "b1", State: model.StateDiscoveryQueued}))
	require.NoError(t, st.CreateClaim(ctx, &model.WebsiteClaim{BusinessID: "b2", State: model.StateDiscoveryQueued}))

	// Nothing is stale yet.
	stale, err := st.ListStale(ctx, []model.ClaimState{model.StateDiscoveryQueued}, time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// With a negative cutoff everything qualifies.
	stale, err = st.ListStale(ctx, []model.ClaimState{model.StateDiscoveryQueued}, -time.Hour, 10)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	stale, err = st.ListStale(ctx, nil, time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSQLite_CountByState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedBusiness(t, st, "b1")
	seedBusiness(t, st, "b2")
	require.NoError(t, st.CreateClaim(ctx, &model.WebsiteClaim{BusinessID: "b1", State: model.StateValid}))
	require.NoError(t, st.CreateClaim(ctx, &model.WebsiteClaim{BusinessID: "b2", State: model.StateNeedsDiscovery}))

	counts, err := st.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.StateValid])
	assert.Equal(t, 1, counts[model.StateNeedsDiscovery])
}

// --- Dead letter queue ---

func TestSQLite_DLQ_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := resilience.DLQEntry{
		Business:     model.Business{ID: "b1", Name: "Acme"},
		Task:         "validation",
		Error:        "render infrastructure unavailable",
		ErrorType:    "transient",
		MaxRetries:   3,
		NextRetryAt:  time.Now().UTC().Add(-time.Minute),
		LastFailedAt: time.Now().UTC(),
	}
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Task: "validation"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b1", entries[0].Business.ID)
	assert.True(t, entries[0].CanRetry())

	require.NoError(t, st.IncrementDLQRetry(ctx, entries[0].ID, time.Now().UTC().Add(time.Hour), "still failing"))

	// The retry is scheduled in the future, so nothing is due.
	due, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, st.RemoveDLQ(ctx, entries[0].ID))
	n, err = st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_DLQ_FilterByErrorType(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, st.EnqueueDLQ(ctx, resilience.DLQEntry{
		Business: model.Business{ID: "b1"}, Task: "discovery",
		Error: "timeout", ErrorType: "transient", MaxRetries: 3,
		NextRetryAt: past, LastFailedAt: past,
	}))
	require.NoError(t, st.EnqueueDLQ(ctx, resilience.DLQEntry{
		Business: model.Business{ID: "b2"}, Task: "discovery",
		Error: "bad credentials", ErrorType: "permanent", MaxRetries: 3,
		NextRetryAt: past, LastFailedAt: past,
	}))

	transient, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, transient, 1)
	assert.Equal(t, "b1", transient[0].Business.ID)
}
