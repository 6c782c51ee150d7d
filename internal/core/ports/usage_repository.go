package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// UsageRepository defines persistence operations for per-user usage periods.
type UsageRepository interface {
	// Find returns the stored usage record for a user, or
	// domain.ErrUserNotFound when the user has never reported usage.
	Find(ctx context.Context, userID string) (*domain.UsagePeriod, error)
	// Save upserts the usage record keyed by user id.
	Save(ctx context.Context, u *domain.UsagePeriod) error
}
