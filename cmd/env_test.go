package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/claim"
	"github.com/sells-group/sitecheck/internal/config"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/store"
)

type fixedValidator struct {
	result model.ValidationResult
}

func (v *fixedValidator) Validate(_ context.Context, _ model.Business, url string) (*model.ValidationResult, error) {
	r := v.result
	if r.URL == "" {
		r.URL = url
	}
	r.ValidatedAt = time.Now().UTC()
	return &r, nil
}

type fixedDiscoverer struct {
	result model.DiscoveryResult
}

func (d *fixedDiscoverer) Discover(_ context.Context, _ model.Business) (*model.DiscoveryResult, error) {
	r := d.result
	return &r, nil
}

// newTestEnv builds an appEnv over a throwaway SQLite store with stubbed
// validation and discovery stages, chained through an inline queue.
func newTestEnv(t *testing.T, validator claim.Validator, discoverer claim.Discoverer) (*appEnv, *inlineQueue) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	queue := &inlineQueue{}
	ctrl := claim.New(st, validator, discoverer, queue, nil, claim.Config{
		SupportedCountries: []string{"US"},
	})
	return &appEnv{Store: st, Controller: ctrl}, queue
}

func TestInlineQueue_DrainRunsChainedTasks(t *testing.T) {
	ctx := context.Background()

	validator := &fixedValidator{result: model.ValidationResult{
		Verdict:        model.VerdictValid,
		Confidence:     0.95,
		Recommendation: model.RecommendKeepURL,
	}}
	env, queue := newTestEnv(t, validator, &fixedDiscoverer{})

	business := model.Business{ID: "b1", Name: "Acme Plumbing", Country: "US"}
	require.NoError(t, env.Store.UpsertBusiness(ctx, business))
	_, err := env.Controller.EnsureClaim(ctx, business, "https://acmeplumbing.com")
	require.NoError(t, err)

	outcome, err := env.Controller.Enqueue(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, claim.OutcomeQueuedValidation, outcome)

	outcome, err = queue.Drain(ctx, env.Controller)
	require.NoError(t, err)
	require.Equal(t, claim.OutcomeValidated, outcome)

	cl, err := env.Store.GetClaim(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, model.StateValid, cl.State)
	require.Empty(t, queue.tasks)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()

	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}
	_, err := initStore(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown store driver")
}
