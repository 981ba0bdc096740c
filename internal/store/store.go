// Package store persists businesses, website claims, and the dead letter
// queue. Two implementations exist: SQLite for single-operator use and
// Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
)

// ClaimFilter specifies criteria for listing claims.
type ClaimFilter struct {
	State   model.ClaimState `json:"state,omitempty"`
	Country string           `json:"country,omitempty"`
	Limit   int              `json:"limit,omitempty"`
	Offset  int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the validation pipeline.
// GetClaim and GetBusiness return (nil, nil) when the row does not exist.
type Store interface {
	// Businesses
	UpsertBusiness(ctx context.Context, business model.Business) error
	GetBusiness(ctx context.Context, id string) (*model.Business, error)

	// Claims
	CreateClaim(ctx context.Context, claim *model.WebsiteClaim) error
	GetClaim(ctx context.Context, businessID string) (*model.WebsiteClaim, error)
	UpdateClaim(ctx context.Context, claim *model.WebsiteClaim) error
	ListClaims(ctx context.Context, filter ClaimFilter) ([]model.WebsiteClaim, error)
	ListStale(ctx context.Context, states []model.ClaimState, olderThan time.Duration, limit int) ([]model.WebsiteClaim, error)
	CountByState(ctx context.Context) (map[model.ClaimState]int, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
