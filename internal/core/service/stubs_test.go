package service

import (
	"context"
	"sort"
	"sync"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// In-memory fakes shared by the service tests. All of them are safe for
// concurrent use so allocator contention tests can hammer them.

type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *stubAccountRepo) add(a *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *stubAccountRepo) SetBlocked(_ context.Context, id string, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	a.Blocked = blocked
	return nil
}

type stubUsageRepo struct {
	mu      sync.Mutex
	records map[string]*domain.UsagePeriod
}

func newStubUsageRepo() *stubUsageRepo {
	return &stubUsageRepo{records: make(map[string]*domain.UsagePeriod)}
}

func (r *stubUsageRepo) Find(_ context.Context, userID string) (*domain.UsagePeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUsageRepo) Save(_ context.Context, u *domain.UsagePeriod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.records[u.UserID] = &clone
	return nil
}

type stubNodeRepo struct {
	mu    sync.Mutex
	nodes map[string]*domain.ProxyNode
}

func newStubNodeRepo() *stubNodeRepo {
	return &stubNodeRepo{nodes: make(map[string]*domain.ProxyNode)}
}

func (r *stubNodeRepo) add(n *domain.ProxyNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.ID] = n
}

func (r *stubNodeRepo) Create(_ context.Context, n *domain.ProxyNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.nodes {
		if existing.PublicIP == n.PublicIP {
			return domain.ErrNodeExists
		}
	}
	clone := *n
	r.nodes[n.ID] = &clone
	return nil
}

func (r *stubNodeRepo) FindByID(_ context.Context, id string) (*domain.ProxyNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, domain.ErrNodeNotFound
	}
	clone := *n
	return &clone, nil
}

func (r *stubNodeRepo) FindByPublicIP(_ context.Context, publicIP string) (*domain.ProxyNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.PublicIP == publicIP {
			clone := *n
			return &clone, nil
		}
	}
	return nil, domain.ErrNodeNotFound
}

func (r *stubNodeRepo) ListActive(_ context.Context) ([]*domain.ProxyNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProxyNode
	for _, n := range r.nodes {
		if n.Status == domain.NodeActive {
			clone := *n
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActiveConnections != out[j].ActiveConnections {
			return out[i].ActiveConnections < out[j].ActiveConnections
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *stubNodeRepo) List(_ context.Context) ([]*domain.ProxyNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProxyNode
	for _, n := range r.nodes {
		clone := *n
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubNodeRepo) IncrementConnections(_ context.Context, nodeID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	n.ActiveConnections += delta
	if n.ActiveConnections < 0 {
		n.ActiveConnections = 0
	}
	return nil
}

func (r *stubNodeRepo) RecordSync(_ context.Context, nodeID string, metrics ports.AgentMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	n.Status = domain.NodeActive
	if metrics.CPULoad != nil {
		n.CPULoad = *metrics.CPULoad
	}
	if metrics.ActiveConnections != nil {
		n.ActiveConnections = *metrics.ActiveConnections
	}
	return nil
}

func (r *stubNodeRepo) UpdateStatus(_ context.Context, nodeID string, status domain.NodeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	n.Status = status
	return nil
}

type stubAllocationRepo struct {
	mu     sync.Mutex
	byUser map[string]*domain.Allocation
}

func newStubAllocationRepo() *stubAllocationRepo {
	return &stubAllocationRepo{byUser: make(map[string]*domain.Allocation)}
}

func (r *stubAllocationRepo) FindByUser(_ context.Context, userID string) (*domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrAllocationNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *stubAllocationRepo) ListByNode(_ context.Context, nodeID string) ([]*domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Allocation
	for _, a := range r.byUser {
		if a.NodeID == nodeID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *stubAllocationRepo) Create(_ context.Context, a *domain.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byUser {
		if existing.NodeID == a.NodeID && existing.Port == a.Port {
			return domain.ErrNoPortsAvailable
		}
	}
	clone := *a
	r.byUser[a.UserID] = &clone
	return nil
}

func (r *stubAllocationRepo) UpdateSpeedLimit(_ context.Context, userID string, speedLimitMbps int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byUser[userID]
	if !ok {
		return domain.ErrAllocationNotFound
	}
	a.SpeedLimitMbps = speedLimitMbps
	return nil
}

func (r *stubAllocationRepo) DeleteByUser(_ context.Context, userID string) (*domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrAllocationNotFound
	}
	delete(r.byUser, userID)
	return a, nil
}

type stubDomainRepo struct {
	mu      sync.Mutex
	domains map[string]*domain.EntryDomain
}

func newStubDomainRepo() *stubDomainRepo {
	return &stubDomainRepo{domains: make(map[string]*domain.EntryDomain)}
}

func (r *stubDomainRepo) add(d *domain.EntryDomain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.ID] = d
}

func (r *stubDomainRepo) findByStatus(status domain.DomainStatus) (*domain.EntryDomain, error) {
	var out []*domain.EntryDomain
	for _, d := range r.domains {
		if d.Status == status {
			clone := *d
			out = append(out, &clone)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrDomainNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out[0], nil
}

func (r *stubDomainRepo) FindActive(_ context.Context) (*domain.EntryDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByStatus(domain.DomainActive)
}

func (r *stubDomainRepo) FindFirstStandby(_ context.Context) (*domain.EntryDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByStatus(domain.DomainStandby)
}

func (r *stubDomainRepo) Create(_ context.Context, d *domain.EntryDomain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.domains {
		if existing.DomainName == d.DomainName {
			return domain.ErrDomainExists
		}
	}
	clone := *d
	r.domains[d.ID] = &clone
	return nil
}

func (r *stubDomainRepo) List(_ context.Context) ([]*domain.EntryDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.EntryDomain
	for _, d := range r.domains {
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubDomainRepo) TransitionStatus(_ context.Context, id string, from, to domain.DomainStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[id]
	if !ok || d.Status != from {
		return domain.ErrDomainNotFound
	}
	d.Status = to
	return nil
}
