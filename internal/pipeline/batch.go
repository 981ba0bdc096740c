package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/sitecheck/internal/model"
)

// BatchItem is one business/URL pair queued for validation.
type BatchItem struct {
	Business model.Business
	URL      string
}

// BatchResult pairs an item with its outcome. Err is set only for
// infrastructure failures; URL judgments live in Result.
type BatchResult struct {
	Item   BatchItem
	Result *model.ValidationResult
	Err    error
}

// ValidateBatch validates items concurrently, capped at maxConcurrent
// in-flight renders. Results come back in input order.
func (o *Orchestrator) ValidateBatch(ctx context.Context, items []BatchItem, maxConcurrent int64) []BatchResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	results := make([]BatchResult, len(items))
	sem := semaphore.NewWeighted(maxConcurrent)
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = BatchResult{Item: item, Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := o.Validate(ctx, item.Business, item.URL)
			results[i] = BatchResult{Item: item, Result: res, Err: err}
			if err != nil {
				zap.L().Error("pipeline: batch item failed",
					zap.String("business_id", item.Business.ID),
					zap.String("url", item.URL),
					zap.Error(err),
				)
			}
		}(i, item)
	}

	wg.Wait()
	return results
}
