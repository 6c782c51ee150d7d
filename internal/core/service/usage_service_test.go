package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

func newUsageFixture(planID string) (*UsageService, *stubUsageRepo) {
	accounts := newStubAccountRepo()
	accounts.add(&domain.Account{ID: "u1", Email: "u1@example.com", PlanID: planID})
	repo := newStubUsageRepo()
	return NewUsageService(repo, accounts, zerolog.Nop()), repo
}

func TestUsageService_Report_AccumulatesWithinMonth(t *testing.T) {
	svc, _ := newUsageFixture("pro")
	svc.now = func() time.Time { return time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) }

	if _, err := svc.Report(context.Background(), "u1", 1000); err != nil {
		t.Fatalf("first report: %v", err)
	}
	status, err := svc.Report(context.Background(), "u1", 2000)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if status.PeriodBytesUsed != 3000 {
		t.Fatalf("expected 3000 period bytes, got %d", status.PeriodBytesUsed)
	}
	if status.LifetimeBytes != 3000 {
		t.Fatalf("expected 3000 lifetime bytes, got %d", status.LifetimeBytes)
	}

	current, err := svc.CurrentUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if current.PeriodBytesUsed != 3000 {
		t.Fatalf("expected CurrentUsage 3000, got %d", current.PeriodBytesUsed)
	}
}

func TestUsageService_Report_MonthRolloverResetsPeriodNotLifetime(t *testing.T) {
	svc, _ := newUsageFixture("pro")
	clock := time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	if _, err := svc.Report(context.Background(), "u1", 5000); err != nil {
		t.Fatalf("march report: %v", err)
	}

	clock = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	status, err := svc.Report(context.Background(), "u1", 700)
	if err != nil {
		t.Fatalf("april report: %v", err)
	}
	if status.PeriodBytesUsed != 700 {
		t.Fatalf("expected new period total 700, got %d", status.PeriodBytesUsed)
	}
	if status.LifetimeBytes != 5700 {
		t.Fatalf("expected lifetime 5700, got %d", status.LifetimeBytes)
	}
}

func TestUsageService_Report_RejectsNonPositive(t *testing.T) {
	svc, _ := newUsageFixture("free")

	for _, bytes := range []int64{0, -1} {
		if _, err := svc.Report(context.Background(), "u1", bytes); !errors.Is(err, domain.ErrInvalidUsage) {
			t.Fatalf("bytes=%d: expected ErrInvalidUsage, got %v", bytes, err)
		}
	}
}

func TestUsageService_Report_UnknownUser(t *testing.T) {
	svc, _ := newUsageFixture("free")

	if _, err := svc.Report(context.Background(), "ghost", 100); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUsageService_QuotaFlagOnReport(t *testing.T) {
	svc, _ := newUsageFixture("free")
	svc.now = func() time.Time { return time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC) }

	// 55 GiB in one report pushes the free plan (50 GiB) over quota.
	status, err := svc.Report(context.Background(), "u1", 55*(1<<30))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !status.QuotaExceeded {
		t.Fatalf("expected quota exceeded at 55 GiB on the free plan")
	}

	// The flag clears at the next UTC month boundary.
	svc.now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }
	current, err := svc.CurrentUsage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if current.QuotaExceeded {
		t.Fatalf("expected quota flag to clear after month rollover")
	}
	if current.PeriodBytesUsed != 0 {
		t.Fatalf("expected fresh period, got %d bytes", current.PeriodBytesUsed)
	}
}

func TestUsageService_IsQuotaExceeded_Boundary(t *testing.T) {
	svc, _ := newUsageFixture("free")
	quota := int64(50) * (1 << 30)

	if svc.IsQuotaExceeded("free", quota-1) {
		t.Fatalf("expected 50GiB-1 to be under quota")
	}
	if !svc.IsQuotaExceeded("free", quota) {
		t.Fatalf("expected 50GiB to be exceeded")
	}
}
