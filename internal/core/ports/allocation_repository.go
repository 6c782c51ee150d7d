package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// AllocationRepository defines persistence operations for user allocations.
type AllocationRepository interface {
	FindByUser(ctx context.Context, userID string) (*domain.Allocation, error)
	// ListByNode returns all allocations bound to a node, oldest first.
	ListByNode(ctx context.Context, nodeID string) ([]*domain.Allocation, error)
	// Create inserts a new allocation. The backing store enforces port
	// uniqueness per node; a collision surfaces as an error.
	Create(ctx context.Context, a *domain.Allocation) error
	UpdateSpeedLimit(ctx context.Context, userID string, speedLimitMbps int) error
	// DeleteByUser removes a user's allocation and returns the removed record
	// so the caller can release node-side resources.
	DeleteByUser(ctx context.Context, userID string) (*domain.Allocation, error)
}
