package resilience

import (
	"time"

	"github.com/sells-group/sitecheck/internal/model"
)

// DLQEntry represents a failed claim task that can be retried later.
type DLQEntry struct {
	ID           string         `json:"id"`
	Business     model.Business `json:"business"`
	Task         string         `json:"task"` // "discovery" or "validation"
	Error        string         `json:"error"`
	ErrorType    string         `json:"error_type"` // "transient" or "permanent"
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	NextRetryAt  time.Time      `json:"next_retry_at"`
	CreatedAt    time.Time      `json:"created_at"`
	LastFailedAt time.Time      `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Task      string `json:"task,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}
