package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
)

const (
	defaultReportAttempts = 3
	defaultReportBackoff  = 2 * time.Second
	reportTimeout         = 10 * time.Second
)

// UsageSink accepts a session's final byte count. In production this is the
// usage meter; the indirection keeps the relay package free of storage deps.
type UsageSink interface {
	ReportUsage(ctx context.Context, userID string, bytesUsed int64) error
}

// ReportDedup guards against submitting the same session's usage twice when
// a retry races a previous delivery.
type ReportDedup interface {
	IsDuplicate(ctx context.Context, sessionID string) (bool, error)
	Mark(ctx context.Context, sessionID string) error
}

// Reporter delivers session byte counts to the usage sink asynchronously.
// Delivery is at-least-once with bounded retries; a count that exhausts its
// retries is logged loudly rather than silently dropped, and session-id
// dedup keeps retries from double-counting.
type Reporter struct {
	sink     UsageSink
	dedup    ReportDedup
	log      zerolog.Logger
	attempts int
	backoff  time.Duration
	wg       sync.WaitGroup
}

func NewReporter(sink UsageSink, dedup ReportDedup, log zerolog.Logger) *Reporter {
	return &Reporter{
		sink:     sink,
		dedup:    dedup,
		log:      log,
		attempts: defaultReportAttempts,
		backoff:  defaultReportBackoff,
	}
}

// Submit queues an asynchronous usage report. Never blocks the caller.
func (r *Reporter) Submit(sessionID, userID string, bytesUsed int64) {
	if bytesUsed <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.deliver(sessionID, userID, bytesUsed)
	}()
}

// Wait blocks until all in-flight reports have settled. For shutdown and tests.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

func (r *Reporter) deliver(sessionID, userID string, bytesUsed int64) {
	if r.dedup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		dup, err := r.dedup.IsDuplicate(ctx, sessionID)
		cancel()
		if err != nil {
			r.log.Warn().Err(err).Str("session_id", sessionID).Msg("report dedup check failed, delivering anyway")
		} else if dup {
			metrics.UsageReportsTotal.WithLabelValues("duplicate").Inc()
			return
		}
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		lastErr = r.sink.ReportUsage(ctx, userID, bytesUsed)
		if lastErr == nil {
			if r.dedup != nil {
				if err := r.dedup.Mark(ctx, sessionID); err != nil {
					r.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to set report dedup key")
				}
			}
			cancel()
			metrics.UsageReportsTotal.WithLabelValues("delivered").Inc()
			return
		}
		cancel()
		if attempt < r.attempts {
			time.Sleep(r.backoff * time.Duration(attempt))
		}
	}

	// Billing under-count: the operator has to reconcile this by hand.
	metrics.UsageReportsTotal.WithLabelValues("failed").Inc()
	r.log.Error().
		Err(lastErr).
		Str("session_id", sessionID).
		Str("user_id", userID).
		Int64("bytes", bytesUsed).
		Msg("usage report failed after retries, bytes not recorded")
}
