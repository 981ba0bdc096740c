package taskqueue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/config"
)

// Runner hosts the Temporal worker that polls the claim task queue.
type Runner struct {
	client      client.Client
	cfg         config.QueueConfig
	activities  *Activities
	concurrency int
}

// NewRunner creates a worker runner. concurrency caps simultaneous
// activity executions, which in turn bounds concurrent browser renders.
func NewRunner(c client.Client, cfg config.QueueConfig, acts *Activities, concurrency int) (*Runner, error) {
	if c == nil {
		return nil, eris.New("taskqueue: client not configured")
	}
	if acts == nil || acts.Controller == nil || acts.Store == nil {
		return nil, eris.New("taskqueue: worker missing dependencies")
	}
	if concurrency < 1 {
		concurrency = 4
	}
	return &Runner{client: c, cfg: cfg, activities: acts, concurrency: concurrency}, nil
}

// Start launches the worker and blocks until the context is canceled.
// A worker cannot be restarted after Stop, so each retry builds a fresh one.
func (r *Runner) Start(ctx context.Context) error {
	deadline := time.Now().Add(dialMaxWait)
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker()
		err := w.Start()
		if err == nil {
			zap.L().Info("taskqueue: worker started",
				zap.String("task_queue", r.cfg.TaskQueue),
				zap.Int("concurrency", r.concurrency),
			)
			<-ctx.Done()
			w.Stop()
			return nil
		}
		w.Stop()

		if time.Now().After(deadline) {
			return eris.Wrapf(err, "taskqueue: worker start on %s", r.cfg.TaskQueue)
		}

		zap.L().Warn("taskqueue: worker failed to start, retrying",
			zap.String("task_queue", r.cfg.TaskQueue),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(clampBackoff(dialBackoff, backoffMax, attempt))
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.client, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})

	w.RegisterWorkflowWithOptions(DiscoveryWorkflow, workflow.RegisterOptions{Name: DiscoveryWorkflowName})
	w.RegisterWorkflowWithOptions(ValidationWorkflow, workflow.RegisterOptions{Name: ValidationWorkflowName})
	w.RegisterActivityWithOptions(r.activities.DiscoverClaim, activity.RegisterOptions{Name: ActivityDiscover})
	w.RegisterActivityWithOptions(r.activities.ValidateClaim, activity.RegisterOptions{Name: ActivityValidate})
	w.RegisterActivityWithOptions(r.activities.RecordFailure, activity.RegisterOptions{Name: ActivityRecordFailure})
	return w
}
