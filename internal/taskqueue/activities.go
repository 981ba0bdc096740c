package taskqueue

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/claim"
	"github.com/sells-group/sitecheck/internal/resilience"
	"github.com/sells-group/sitecheck/internal/store"
)

// Activities bind workflow steps to the claim controller.
type Activities struct {
	Controller *claim.Controller
	Store      store.Store
}

// DiscoverClaim runs one discovery attempt.
func (a *Activities) DiscoverClaim(ctx context.Context, businessID string) (TaskResult, error) {
	outcome, err := a.Controller.ProcessDiscovery(ctx, businessID)
	if err != nil {
		return TaskResult{}, classify(err)
	}
	return TaskResult{Outcome: string(outcome)}, nil
}

// ValidateClaim runs the validation pipeline.
func (a *Activities) ValidateClaim(ctx context.Context, businessID string) (TaskResult, error) {
	outcome, err := a.Controller.ProcessValidation(ctx, businessID)
	if err != nil {
		return TaskResult{}, classify(err)
	}
	return TaskResult{Outcome: string(outcome)}, nil
}

// RecordFailure marks the claim errored and leaves a dead-letter entry
// for the operator. Runs after the task's retry budget is spent.
func (a *Activities) RecordFailure(ctx context.Context, businessID, task, errMsg string) error {
	if err := a.Controller.MarkError(ctx, businessID, errMsg); err != nil {
		return err
	}

	business, err := a.Store.GetBusiness(ctx, businessID)
	if err != nil {
		return err
	}
	entry := resilience.DLQEntry{
		Task:         task,
		Error:        errMsg,
		ErrorType:    "permanent",
		MaxRetries:   3,
		NextRetryAt:  time.Now().UTC().Add(time.Hour),
		LastFailedAt: time.Now().UTC(),
	}
	if business != nil {
		entry.Business = *business
	}
	if err := a.Store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Error("taskqueue: dlq write failed",
			zap.String("business_id", businessID),
			zap.Error(err),
		)
	}
	return nil
}

// classify keeps Temporal from retrying errors that can never heal, like
// a missing claim or a rejected API key.
func classify(err error) error {
	if resilience.IsTransient(err) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), "permanent", err)
}
