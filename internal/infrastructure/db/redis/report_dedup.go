package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const reportDedupTTL = 24 * time.Hour

// ReportDedup provides idempotency checks for usage reports backed by Redis.
//
// Usage delivery is at-least-once: the reporter retries until the meter
// accepts. A crash after the meter write but before the retry queue is
// drained would double-count a session, so each session's final byte count is
// submitted under its session id and checked here first.
// Key format: usage:report:<session_id>
type ReportDedup struct {
	client *redis.Client
}

// NewReportDedup creates a ReportDedup wrapping the given Redis client.
func NewReportDedup(client *redis.Client) *ReportDedup {
	return &ReportDedup{client: client}
}

// IsDuplicate reports whether this session's usage has already been submitted.
func (d *ReportDedup) IsDuplicate(ctx context.Context, sessionID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("report dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this session's usage has been submitted (expires after
// reportDedupTTL; sessions never outlive that window unreported).
func (d *ReportDedup) Mark(ctx context.Context, sessionID string) error {
	return d.client.Set(ctx, d.key(sessionID), "1", reportDedupTTL).Err()
}

func (d *ReportDedup) key(sessionID string) string {
	return "usage:report:" + sessionID
}
