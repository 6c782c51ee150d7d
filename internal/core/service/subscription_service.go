package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// SubscriptionResolver turns a user id into a ready-to-use relay subscription:
// quota gate first, then node/port allocation, then a signed session token
// bound to the allocation's relay credential.
//
// This is the only place quota is enforced; sessions already relaying are
// never cut mid-flight when they cross the threshold.
type SubscriptionResolver struct {
	accounts  ports.AccountRepository
	usage     ports.UsageMeter
	allocator ports.Allocator
	domains   ports.DomainRepository
	nodes     ports.NodeRepository
	codec     ports.SessionCodec
	log       zerolog.Logger
}

func NewSubscriptionResolver(
	accounts ports.AccountRepository,
	usage ports.UsageMeter,
	allocator ports.Allocator,
	domains ports.DomainRepository,
	nodes ports.NodeRepository,
	codec ports.SessionCodec,
	log zerolog.Logger,
) *SubscriptionResolver {
	return &SubscriptionResolver{
		accounts:  accounts,
		usage:     usage,
		allocator: allocator,
		domains:   domains,
		nodes:     nodes,
		codec:     codec,
		log:       log,
	}
}

var _ ports.SubscriptionService = (*SubscriptionResolver)(nil)

// Resolve produces the connection bundle for a user, or fails with
// domain.ErrAccountBlocked, domain.ErrQuotaExceeded, or an allocator error.
func (s *SubscriptionResolver) Resolve(ctx context.Context, userID string) (*ports.SubscriptionInfo, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Blocked {
		return nil, domain.ErrAccountBlocked
	}

	status, err := s.usage.CurrentUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	if s.usage.IsQuotaExceeded(account.PlanID, status.PeriodBytesUsed) {
		return nil, domain.ErrQuotaExceeded
	}

	allocation, err := s.allocator.Allocate(ctx, userID, account.PlanID)
	if err != nil {
		return nil, err
	}

	entry, err := s.domains.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	node, err := s.nodes.FindByID(ctx, allocation.NodeID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}

	plan := domain.ResolvePlan(account.PlanID)
	token, err := s.codec.Issue(domain.SessionCredential{
		UserID:       userID,
		PlanID:       string(plan.ID),
		CredentialID: allocation.CredentialID,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("plan_id", string(plan.ID)).
		Str("node_id", allocation.NodeID).
		Msg("subscription resolved")

	return &ports.SubscriptionInfo{
		UserID:         userID,
		PlanID:         string(plan.ID),
		NodeIP:         node.PublicIP,
		DomainName:     entry.DomainName,
		ConnectionPort: 443,
		SpeedLimitMbps: allocation.SpeedLimitMbps,
		SessionToken:   token,
	}, nil
}
