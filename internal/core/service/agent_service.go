package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// AgentSyncService serves the node agent polling exchange: stamp the node's
// health, then hand back its current allocation set with effective plan
// limits. Users over their monthly quota are left out so the node cuts them
// off on the next config apply.
type AgentSyncService struct {
	nodes    ports.NodeRepository
	allocs   ports.AllocationRepository
	accounts ports.AccountRepository
	usage    ports.UsageRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewAgentSyncService(
	nodes ports.NodeRepository,
	allocs ports.AllocationRepository,
	accounts ports.AccountRepository,
	usage ports.UsageRepository,
	log zerolog.Logger,
) *AgentSyncService {
	return &AgentSyncService{
		nodes:    nodes,
		allocs:   allocs,
		accounts: accounts,
		usage:    usage,
		log:      log,
		now:      time.Now,
	}
}

var _ ports.AgentService = (*AgentSyncService)(nil)

// Sync records the agent's ping (promoting a provisioning node to active) and
// returns the node's allocation config.
func (s *AgentSyncService) Sync(ctx context.Context, nodeIP string, metrics ports.AgentMetrics) (*ports.AgentConfig, error) {
	node, err := s.nodes.FindByPublicIP(ctx, nodeIP)
	if err != nil {
		return nil, err
	}

	if err := s.nodes.RecordSync(ctx, node.ID, metrics); err != nil {
		return nil, fmt.Errorf("agent sync: %w", err)
	}

	allocations, err := s.allocs.ListByNode(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("agent sync: %w", err)
	}

	now := s.now()
	cfg := &ports.AgentConfig{NodeConfig: make([]ports.AgentAllocation, 0, len(allocations))}
	for _, a := range allocations {
		account, err := s.accounts.FindByID(ctx, a.UserID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", a.UserID).Msg("allocation without account, skipping")
			continue
		}
		if account.Blocked {
			continue
		}

		plan := domain.ResolvePlan(account.PlanID)
		if s.overQuota(ctx, a.UserID, plan, now) {
			continue
		}

		cfg.NodeConfig = append(cfg.NodeConfig, ports.AgentAllocation{
			UserID:                a.UserID,
			Email:                 account.Email,
			PlanID:                string(plan.ID),
			CredentialID:          a.CredentialID,
			Port:                  a.Port,
			SpeedLimitMbps:        plan.BandwidthLimitMbps,
			MonthlyTrafficLimitGB: plan.MonthlyTrafficLimitGB,
			DeviceLimit:           plan.DeviceLimit,
		})
	}

	s.log.Debug().
		Str("node_id", node.ID).
		Str("node_ip", nodeIP).
		Int("allocations", len(cfg.NodeConfig)).
		Msg("agent config served")

	return cfg, nil
}

func (s *AgentSyncService) overQuota(ctx context.Context, userID string, plan domain.Plan, now time.Time) bool {
	stored, err := s.usage.Find(ctx, userID)
	if err != nil {
		// No usage record means no traffic this period.
		return false
	}
	return plan.IsQuotaExceeded(domain.CurrentPeriodUsage(stored.PeriodStart, stored.BytesUsed, now))
}
