package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// UsageService implements the usage meter and quota enforcer. Period rollover
// is lazy: nothing resets at the month boundary, a stale stored period simply
// counts as zero on the next read or report.
type UsageService struct {
	repo     ports.UsageRepository
	accounts ports.AccountRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewUsageService(repo ports.UsageRepository, accounts ports.AccountRepository, log zerolog.Logger) *UsageService {
	return &UsageService{repo: repo, accounts: accounts, log: log, now: time.Now}
}

var _ ports.UsageMeter = (*UsageService)(nil)

// Report adds bytesUsed to the user's current-period and lifetime totals and
// returns the resulting quota status. Reports for unknown users fail with
// domain.ErrUserNotFound.
func (s *UsageService) Report(ctx context.Context, userID string, bytesUsed int64) (ports.UsageStatus, error) {
	if userID == "" || bytesUsed <= 0 {
		return ports.UsageStatus{}, domain.ErrInvalidUsage
	}

	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return ports.UsageStatus{}, err
	}

	now := s.now()
	stored, err := s.repo.Find(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return ports.UsageStatus{}, fmt.Errorf("usage report: %w", err)
		}
		stored = &domain.UsagePeriod{UserID: userID}
	}

	periodBytes := domain.CurrentPeriodUsage(stored.PeriodStart, stored.BytesUsed, now) + bytesUsed
	updated := &domain.UsagePeriod{
		UserID:        userID,
		PeriodStart:   domain.PeriodStart(now),
		BytesUsed:     periodBytes,
		LifetimeBytes: stored.LifetimeBytes + bytesUsed,
	}
	if err := s.repo.Save(ctx, updated); err != nil {
		return ports.UsageStatus{}, fmt.Errorf("usage report: %w", err)
	}

	s.log.Debug().
		Str("user_id", userID).
		Int64("bytes", bytesUsed).
		Int64("period_total", periodBytes).
		Msg("usage reported")

	return s.status(updated, account.PlanID, now), nil
}

// CurrentUsage returns the user's usage in the period containing now. Users
// with no stored usage record report zero rather than an error.
func (s *UsageService) CurrentUsage(ctx context.Context, userID string) (ports.UsageStatus, error) {
	planID := string(domain.PlanFree)
	if account, err := s.accounts.FindByID(ctx, userID); err == nil {
		planID = account.PlanID
	}

	now := s.now()
	stored, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ports.UsageStatus{UserID: userID}, nil
		}
		return ports.UsageStatus{}, fmt.Errorf("current usage: %w", err)
	}
	return s.status(stored, planID, now), nil
}

// IsQuotaExceeded reports whether bytes meets or exceeds the plan's monthly
// quota. The boundary is inclusive.
func (s *UsageService) IsQuotaExceeded(planID string, bytes int64) bool {
	return domain.ResolvePlan(planID).IsQuotaExceeded(bytes)
}

func (s *UsageService) status(u *domain.UsagePeriod, planID string, now time.Time) ports.UsageStatus {
	periodBytes := domain.CurrentPeriodUsage(u.PeriodStart, u.BytesUsed, now)
	return ports.UsageStatus{
		UserID:          u.UserID,
		PeriodBytesUsed: periodBytes,
		PeriodUsageGB:   bytesToGB(periodBytes),
		LifetimeBytes:   u.LifetimeBytes,
		QuotaExceeded:   domain.ResolvePlan(planID).IsQuotaExceeded(periodBytes),
	}
}

// bytesToGB converts bytes to gigabytes rounded to two decimals, matching the
// shape the usage-report collaborators expect.
func bytesToGB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1<<30)*100) / 100
}
