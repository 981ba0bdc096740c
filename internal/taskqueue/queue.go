package taskqueue

import (
	"context"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/config"
)

// TemporalQueue schedules claim tasks on a Temporal task queue. It
// implements claim.Enqueuer.
type TemporalQueue struct {
	client      client.Client
	taskQueue   string
	maxAttempts int
}

// NewQueue wraps a connected Temporal client.
func NewQueue(c client.Client, cfg config.QueueConfig) *TemporalQueue {
	return &TemporalQueue{
		client:      c,
		taskQueue:   cfg.TaskQueue,
		maxAttempts: cfg.MaxAttempts,
	}
}

// EnqueueDiscovery starts a discovery workflow for the business. The
// workflow ID is derived from the business so a concurrent duplicate
// start is rejected by the server rather than yielding two searches.
func (q *TemporalQueue) EnqueueDiscovery(ctx context.Context, businessID string) error {
	return q.start(ctx, DiscoveryWorkflowName, "discovery-"+businessID, businessID)
}

// EnqueueValidation starts a validation workflow for the business.
func (q *TemporalQueue) EnqueueValidation(ctx context.Context, businessID string) error {
	return q.start(ctx, ValidationWorkflowName, "validation-"+businessID, businessID)
}

func (q *TemporalQueue) start(ctx context.Context, workflowName, workflowID, businessID string) error {
	run, err := q.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: q.taskQueue,
		// Terminal claims may be reset and re-run under the same ID.
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflowName, TaskInput{BusinessID: businessID, MaxAttempts: q.maxAttempts})
	if err != nil {
		return eris.Wrapf(err, "taskqueue: start %s for %s", workflowName, businessID)
	}

	zap.L().Info("taskqueue: workflow started",
		zap.String("workflow", workflowName),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return nil
}
