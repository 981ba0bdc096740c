package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/claim"
	"github.com/sells-group/sitecheck/internal/discovery"
	"github.com/sells-group/sitecheck/internal/pipeline"
	"github.com/sells-group/sitecheck/internal/render"
	"github.com/sells-group/sitecheck/internal/semantic"
	"github.com/sells-group/sitecheck/internal/store"
	"github.com/sells-group/sitecheck/internal/taskqueue"
	anthropicpkg "github.com/sells-group/sitecheck/pkg/anthropic"
	"github.com/sells-group/sitecheck/pkg/browserless"
	"github.com/sells-group/sitecheck/pkg/perplexity"
)

// appEnv holds the initialized store and controller shared by the
// validate/discover/batch/worker/serve commands. Pipeline is set only by
// initEnv; queue-only environments leave it nil.
type appEnv struct {
	Store      store.Store
	Controller *claim.Controller
	Pipeline   *pipeline.Orchestrator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv sets up the store, API clients, validation pipeline, discovery
// service, and the claim controller. Task chaining goes through the given
// enqueuer. Callers should defer env.Close().
func initEnv(ctx context.Context, queue claim.Enqueuer) (*appEnv, error) {
	if cfg.Browserless.Key == "" {
		return nil, eris.New("browserless key is required (SITECHECK_BROWSERLESS_KEY)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (SITECHECK_ANTHROPIC_KEY)")
	}
	if cfg.Perplexity.Key == "" {
		return nil, eris.New("perplexity key is required (SITECHECK_PERPLEXITY_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	renderTimeout := time.Duration(cfg.Render.TimeoutSecs) * time.Second

	renderClient := browserless.NewClient(cfg.Browserless.Key, browserless.WithBaseURL(cfg.Browserless.BaseURL))
	renderer := render.NewBrowserRenderer(renderClient, renderTimeout)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	validator := semantic.NewLLMValidator(anthropicClient, cfg.Anthropic.Model)

	var filter *discovery.DomainFilter
	if cfg.Discovery.DomainListPath != "" {
		filter, err = discovery.NewDomainFilterFromFile(cfg.Discovery.DomainListPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load domain list")
		}
	} else {
		filter = discovery.NewDomainFilter()
	}

	var pipeOpts []pipeline.Option
	if cfg.Render.Screenshots {
		pipeOpts = append(pipeOpts, pipeline.WithScreenshots())
	}
	orch := pipeline.New(renderer, validator, filter, renderTimeout, pipeOpts...)

	searchClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)
	discoverer := discovery.NewService(searchClient, filter,
		cfg.Perplexity.RatePerS,
		time.Duration(cfg.Discovery.TimeoutSecs)*time.Second,
	)

	ctrl := claim.New(st, orch, discoverer, queue, nil, claim.Config{
		ReviewQualityThreshold: cfg.Pipeline.ReviewQualityThreshold,
		CountryConfidenceMin:   cfg.Discovery.CountryConfidenceMin,
		SupportedCountries:     cfg.Discovery.SupportedCountries,
	})

	return &appEnv{
		Store:      st,
		Controller: ctrl,
		Pipeline:   orch,
	}, nil
}

// initRemoteEnv sets up the store and a controller wired to the Temporal
// task queue. The validation and discovery stages are not constructed:
// commands that only enqueue or reset claims never run them, so no
// provider API keys are needed. The returned Temporal client must be
// closed by the caller.
func initRemoteEnv(ctx context.Context) (*appEnv, client.Client, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	tc, err := taskqueue.Dial(cfg.Queue)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	queue := taskqueue.NewQueue(tc, cfg.Queue)
	ctrl := claim.New(st, nil, nil, queue, nil, claim.Config{
		ReviewQualityThreshold: cfg.Pipeline.ReviewQualityThreshold,
		CountryConfidenceMin:   cfg.Discovery.CountryConfidenceMin,
		SupportedCountries:     cfg.Discovery.SupportedCountries,
	})

	return &appEnv{Store: st, Controller: ctrl}, tc, nil
}

type taskKind string

const (
	taskDiscovery  taskKind = "discovery"
	taskValidation taskKind = "validation"
)

type inlineTask struct {
	kind       taskKind
	businessID string
}

// inlineQueue records chained tasks so one-shot commands can run them
// in-process instead of through the task queue.
type inlineQueue struct {
	tasks []inlineTask
}

func (q *inlineQueue) EnqueueDiscovery(_ context.Context, businessID string) error {
	q.tasks = append(q.tasks, inlineTask{kind: taskDiscovery, businessID: businessID})
	return nil
}

func (q *inlineQueue) EnqueueValidation(_ context.Context, businessID string) error {
	q.tasks = append(q.tasks, inlineTask{kind: taskValidation, businessID: businessID})
	return nil
}

// Drain processes queued tasks, including ones chained while draining,
// and returns the outcome of the last task run.
func (q *inlineQueue) Drain(ctx context.Context, ctrl *claim.Controller) (claim.Outcome, error) {
	last := claim.OutcomeSkipped
	for len(q.tasks) > 0 {
		t := q.tasks[0]
		q.tasks = q.tasks[1:]

		var (
			outcome claim.Outcome
			err     error
		)
		switch t.kind {
		case taskDiscovery:
			outcome, err = ctrl.ProcessDiscovery(ctx, t.businessID)
		case taskValidation:
			outcome, err = ctrl.ProcessValidation(ctx, t.businessID)
		}
		if err != nil {
			return outcome, err
		}

		zap.L().Debug("inline task complete",
			zap.String("kind", string(t.kind)),
			zap.String("business_id", t.businessID),
			zap.String("outcome", string(outcome)),
		)
		last = outcome
	}
	return last, nil
}
