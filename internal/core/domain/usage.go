package domain

import "time"

// UsagePeriod tracks a user's traffic for one calendar month (UTC). The period
// is never reset by a writer: rollover is lazy, a stored PeriodStart that does
// not match the current month simply counts as zero (see CurrentPeriodUsage).
type UsagePeriod struct {
	UserID      string    `json:"user_id" bson:"_id"`
	PeriodStart time.Time `json:"period_start" bson:"period_start"`
	BytesUsed   int64     `json:"bytes_used" bson:"bytes_used"`
	// LifetimeBytes accumulates across periods and never resets.
	LifetimeBytes int64 `json:"lifetime_bytes" bson:"lifetime_bytes"`
}

// PeriodStart returns the usage period key for the given instant: the first of
// that UTC month at 00:00:00.
func PeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CurrentPeriodUsage resolves the effective bytes used in the period containing
// now. A stored period that is not the current one contributes zero; negative
// stored values are clamped to zero.
func CurrentPeriodUsage(storedPeriodStart time.Time, storedBytes int64, now time.Time) int64 {
	if !storedPeriodStart.Equal(PeriodStart(now)) {
		return 0
	}
	if storedBytes < 0 {
		return 0
	}
	return storedBytes
}
