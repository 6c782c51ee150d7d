package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

const (
	defaultAllocatorShards = 8
	allocJobBuffer         = 64
)

// AllocatorConfig bounds the port scan and sizes the serialization shards.
type AllocatorConfig struct {
	PortRangeStart int
	PortRangeEnd   int
	Shards         int
}

type allocJob struct {
	ctx    context.Context
	userID string
	plan   domain.Plan
	nodeID string
	reply  chan allocResult
}

type allocResult struct {
	allocation *domain.Allocation
	err        error
}

// AllocatorService assigns users to backend nodes and ports.
//
// The port scan plus allocation insert plus node counter increment for one
// node must never interleave with another allocation on the same node, so
// jobs are routed onto a fixed set of single-writer workers by hash of the
// node id. No lock is shared across nodes that land on different shards.
type AllocatorService struct {
	nodes   ports.NodeRepository
	allocs  ports.AllocationRepository
	domains ports.DomainRepository
	cfg     AllocatorConfig
	shards  []chan allocJob
	log     zerolog.Logger
}

func NewAllocatorService(
	nodes ports.NodeRepository,
	allocs ports.AllocationRepository,
	domains ports.DomainRepository,
	cfg AllocatorConfig,
	log zerolog.Logger,
) *AllocatorService {
	if cfg.Shards <= 0 {
		cfg.Shards = defaultAllocatorShards
	}
	if cfg.PortRangeStart <= 0 {
		cfg.PortRangeStart = 10000
	}
	if cfg.PortRangeEnd <= cfg.PortRangeStart {
		cfg.PortRangeEnd = 50000
	}

	s := &AllocatorService{
		nodes:   nodes,
		allocs:  allocs,
		domains: domains,
		cfg:     cfg,
		shards:  make([]chan allocJob, cfg.Shards),
		log:     log,
	}
	for i := range s.shards {
		s.shards[i] = make(chan allocJob, allocJobBuffer)
	}
	return s
}

var _ ports.Allocator = (*AllocatorService)(nil)

// Start launches the shard workers. Workers stop when ctx is cancelled.
func (s *AllocatorService) Start(ctx context.Context) {
	for i, ch := range s.shards {
		go s.runShard(ctx, i, ch)
	}
}

// Allocate returns the user's allocation, creating one on first access.
func (s *AllocatorService) Allocate(ctx context.Context, userID, planID string) (*domain.Allocation, error) {
	plan := domain.ResolvePlan(planID)

	// Fast path: an existing allocation is reused; only the speed limit
	// follows the plan.
	existing, err := s.allocs.FindByUser(ctx, userID)
	if err == nil {
		metrics.AllocationsTotal.WithLabelValues("reused").Inc()
		return s.refreshSpeedLimit(ctx, existing, plan)
	}
	if !errors.Is(err, domain.ErrAllocationNotFound) {
		metrics.AllocationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("allocate: %w", err)
	}

	// No relay service without a reachable entry domain.
	if _, err := s.domains.FindActive(ctx); err != nil {
		if errors.Is(err, domain.ErrDomainNotFound) {
			metrics.AllocationsTotal.WithLabelValues("no_capacity").Inc()
			return nil, domain.ErrNoCapacity
		}
		metrics.AllocationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("allocate: %w", err)
	}

	nodeID, err := s.selectNode(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoCapacity) {
			metrics.AllocationsTotal.WithLabelValues("no_capacity").Inc()
		}
		return nil, err
	}

	job := allocJob{
		ctx:    ctx,
		userID: userID,
		plan:   plan,
		nodeID: nodeID,
		reply:  make(chan allocResult, 1),
	}
	select {
	case s.shards[s.shardIndex(nodeID)] <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-job.reply:
		switch {
		case res.err == nil:
			metrics.AllocationsTotal.WithLabelValues("created").Inc()
		case errors.Is(res.err, domain.ErrNoPortsAvailable):
			metrics.AllocationsTotal.WithLabelValues("no_ports").Inc()
		default:
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
		}
		return res.allocation, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReleaseUser removes the user's allocation and frees its node slot. Used
// when an account is blocked or deleted; missing allocations are a no-op.
func (s *AllocatorService) ReleaseUser(ctx context.Context, userID string) error {
	removed, err := s.allocs.DeleteByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAllocationNotFound) {
			return nil
		}
		return fmt.Errorf("release user: %w", err)
	}

	if err := s.nodes.IncrementConnections(ctx, removed.NodeID, -1); err != nil {
		s.log.Warn().Err(err).Str("node_id", removed.NodeID).Msg("failed to decrement node connections")
	}

	s.log.Info().Str("user_id", userID).Str("node_id", removed.NodeID).Int("port", removed.Port).
		Msg("allocation released")
	return nil
}

// selectNode picks the active node with the fewest connections, ties broken
// by id, so repeated calls under the same load are stable.
func (s *AllocatorService) selectNode(ctx context.Context) (string, error) {
	active, err := s.nodes.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate: list nodes: %w", err)
	}
	if len(active) == 0 {
		return "", domain.ErrNoCapacity
	}

	best := active[0]
	for _, n := range active[1:] {
		if n.ActiveConnections < best.ActiveConnections ||
			(n.ActiveConnections == best.ActiveConnections && n.ID < best.ID) {
			best = n
		}
	}
	return best.ID, nil
}

// shardIndex maps a node id deterministically to a worker index, so all
// allocations for one node serialize on the same goroutine.
func (s *AllocatorService) shardIndex(nodeID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(nodeID))
	return int(h.Sum32()) % len(s.shards)
}

func (s *AllocatorService) runShard(ctx context.Context, id int, ch <-chan allocJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			allocation, err := s.allocateOnNode(job)
			if err != nil {
				s.log.Error().Err(err).
					Str("user_id", job.userID).
					Str("node_id", job.nodeID).
					Int("shard", id).
					Msg("allocation failed")
			}
			job.reply <- allocResult{allocation: allocation, err: err}
		}
	}
}

// allocateOnNode runs inside a shard worker, so for a given node it is the
// only writer touching that node's port set and counter.
func (s *AllocatorService) allocateOnNode(job allocJob) (*domain.Allocation, error) {
	// A concurrent request for the same user may have won the race to the
	// shard queue; the serialized re-check makes that harmless.
	if existing, err := s.allocs.FindByUser(job.ctx, job.userID); err == nil {
		return s.refreshSpeedLimit(job.ctx, existing, job.plan)
	}

	bound, err := s.allocs.ListByNode(job.ctx, job.nodeID)
	if err != nil {
		return nil, fmt.Errorf("allocate: list node ports: %w", err)
	}
	inUse := make(map[int]struct{}, len(bound))
	for _, a := range bound {
		inUse[a.Port] = struct{}{}
	}

	port := 0
	for p := s.cfg.PortRangeStart; p <= s.cfg.PortRangeEnd; p++ {
		if _, taken := inUse[p]; !taken {
			port = p
			break
		}
	}
	if port == 0 {
		return nil, domain.ErrNoPortsAvailable
	}

	allocation := &domain.Allocation{
		ID:             uuid.NewString(),
		UserID:         job.userID,
		NodeID:         job.nodeID,
		CredentialID:   uuid.NewString(),
		Port:           port,
		SpeedLimitMbps: job.plan.BandwidthLimitMbps,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.allocs.Create(job.ctx, allocation); err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	if err := s.nodes.IncrementConnections(job.ctx, job.nodeID, 1); err != nil {
		s.log.Warn().Err(err).Str("node_id", job.nodeID).Msg("failed to increment node connections")
	}

	s.log.Info().
		Str("user_id", job.userID).
		Str("node_id", job.nodeID).
		Int("port", port).
		Msg("allocation created")

	return allocation, nil
}

func (s *AllocatorService) refreshSpeedLimit(ctx context.Context, a *domain.Allocation, plan domain.Plan) (*domain.Allocation, error) {
	if a.SpeedLimitMbps == plan.BandwidthLimitMbps {
		return a, nil
	}
	if err := s.allocs.UpdateSpeedLimit(ctx, a.UserID, plan.BandwidthLimitMbps); err != nil {
		return nil, fmt.Errorf("allocate: update speed limit: %w", err)
	}
	a.SpeedLimitMbps = plan.BandwidthLimitMbps
	return a, nil
}
