package ports

import "context"

// UsageStatus is the quota-relevant view of a user's traffic accounting.
type UsageStatus struct {
	UserID          string  `json:"userId"`
	PeriodBytesUsed int64   `json:"currentPeriodBytesUsed"`
	PeriodUsageGB   float64 `json:"currentPeriodUsageGb"`
	LifetimeBytes   int64   `json:"lifetimeBytesUsed"`
	QuotaExceeded   bool    `json:"quotaExceeded"`
}

// UsageMeter tracks per-period traffic and exposes quota status. Quota is
// enforced only at session establishment; in-flight sessions are never cut.
type UsageMeter interface {
	// Report adds bytesUsed to the user's current period and lifetime totals.
	// bytesUsed must be positive or domain.ErrInvalidUsage is returned.
	Report(ctx context.Context, userID string, bytesUsed int64) (UsageStatus, error)
	CurrentUsage(ctx context.Context, userID string) (UsageStatus, error)
	// IsQuotaExceeded reports whether bytes meets or exceeds the monthly quota
	// of the given plan (inclusive boundary).
	IsQuotaExceeded(planID string, bytes int64) bool
}
