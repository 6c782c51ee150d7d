package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// Allocator assigns users to backend nodes and ports.
type Allocator interface {
	// Allocate returns the user's allocation, creating one on first access.
	// The speed limit is refreshed in place when the plan's bandwidth changed.
	// Fails with domain.ErrNoCapacity when no active node or domain exists and
	// domain.ErrNoPortsAvailable when the chosen node's port range is full.
	Allocate(ctx context.Context, userID, planID string) (*domain.Allocation, error)
	// ReleaseUser removes the user's allocation and frees its node slot.
	// Releasing a user without an allocation is a no-op.
	ReleaseUser(ctx context.Context, userID string) error
}
