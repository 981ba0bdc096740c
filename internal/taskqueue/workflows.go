package taskqueue

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow and activity names registered on the task queue.
const (
	DiscoveryWorkflowName  = "sitecheck.discovery"
	ValidationWorkflowName = "sitecheck.validation"

	ActivityDiscover      = "sitecheck.discover-claim"
	ActivityValidate      = "sitecheck.validate-claim"
	ActivityRecordFailure = "sitecheck.record-failure"
)

// TaskInput is the single argument to both workflows.
type TaskInput struct {
	BusinessID  string `json:"business_id"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}

// TaskResult reports what the controller decided.
type TaskResult struct {
	Outcome string `json:"outcome"`
}

func activityOptions(in TaskInput, timeout time.Duration) workflow.ActivityOptions {
	maxAttempts := int32(in.MaxAttempts)
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    maxAttempts,
		},
	}
}

// DiscoveryWorkflow runs one discovery attempt for a claim. Queue-level
// retries apply to infrastructure failures only; a claim that legitimately
// has no website completes normally with that outcome.
func DiscoveryWorkflow(ctx workflow.Context, in TaskInput) (TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(in, 5*time.Minute))

	var result TaskResult
	err := workflow.ExecuteActivity(ctx, ActivityDiscover, in.BusinessID).Get(ctx, &result)
	if err != nil {
		recordFailure(ctx, in.BusinessID, "discovery", err)
		return TaskResult{}, err
	}
	return result, nil
}

// ValidationWorkflow runs the validation pipeline for a claim.
func ValidationWorkflow(ctx workflow.Context, in TaskInput) (TaskResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(in, 10*time.Minute))

	var result TaskResult
	err := workflow.ExecuteActivity(ctx, ActivityValidate, in.BusinessID).Get(ctx, &result)
	if err != nil {
		recordFailure(ctx, in.BusinessID, "validation", err)
		return TaskResult{}, err
	}
	return result, nil
}

// recordFailure parks the claim in the error state after retries are
// exhausted. Best effort with its own short retry budget.
func recordFailure(ctx workflow.Context, businessID, task string, cause error) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	ctx = workflow.WithActivityOptions(ctx, opts)
	if err := workflow.ExecuteActivity(ctx, ActivityRecordFailure, businessID, task, cause.Error()).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to record task failure",
			"business_id", businessID, "task", task, "error", err)
	}
}
