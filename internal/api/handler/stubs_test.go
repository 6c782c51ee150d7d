package handler_test

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api"
	"github.com/superproxy/relay-gateway/internal/api/handler"
	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(zerolog.Nop())
	return e
}

type stubCodec struct {
	cred      domain.SessionCredential
	verifyErr error
}

func (s *stubCodec) Issue(domain.SessionCredential) (string, error) { return "token", nil }
func (s *stubCodec) Verify(string) (domain.SessionCredential, error) {
	return s.cred, s.verifyErr
}

type stubMeter struct {
	status     ports.UsageStatus
	reportErr  error
	currentErr error
	gotUserID  string
	gotBytes   int64
}

func (s *stubMeter) Report(_ context.Context, userID string, bytesUsed int64) (ports.UsageStatus, error) {
	s.gotUserID, s.gotBytes = userID, bytesUsed
	if s.reportErr != nil {
		return ports.UsageStatus{}, s.reportErr
	}
	return s.status, nil
}

func (s *stubMeter) CurrentUsage(_ context.Context, userID string) (ports.UsageStatus, error) {
	if s.currentErr != nil {
		return ports.UsageStatus{}, s.currentErr
	}
	return s.status, nil
}

func (s *stubMeter) IsQuotaExceeded(planID string, bytes int64) bool {
	return domain.ResolvePlan(planID).IsQuotaExceeded(bytes)
}

type stubSubscriptions struct {
	info *ports.SubscriptionInfo
	err  error
}

func (s *stubSubscriptions) Resolve(context.Context, string) (*ports.SubscriptionInfo, error) {
	return s.info, s.err
}

type stubAgents struct {
	cfg        *ports.AgentConfig
	err        error
	gotNodeIP  string
	gotMetrics ports.AgentMetrics
}

func (s *stubAgents) Sync(_ context.Context, nodeIP string, metrics ports.AgentMetrics) (*ports.AgentConfig, error) {
	s.gotNodeIP, s.gotMetrics = nodeIP, metrics
	return s.cfg, s.err
}

type stubNodeRepo struct {
	nodes     map[string]*domain.ProxyNode
	createErr error
}

func (r *stubNodeRepo) Create(_ context.Context, n *domain.ProxyNode) error {
	if r.createErr != nil {
		return r.createErr
	}
	if n.ID == "" {
		n.ID = "node-" + n.PublicIP
	}
	if r.nodes == nil {
		r.nodes = make(map[string]*domain.ProxyNode)
	}
	r.nodes[n.ID] = n
	return nil
}

func (r *stubNodeRepo) FindByID(_ context.Context, id string) (*domain.ProxyNode, error) {
	if n, ok := r.nodes[id]; ok {
		return n, nil
	}
	return nil, domain.ErrNodeNotFound
}

func (r *stubNodeRepo) FindByPublicIP(_ context.Context, ip string) (*domain.ProxyNode, error) {
	for _, n := range r.nodes {
		if n.PublicIP == ip {
			return n, nil
		}
	}
	return nil, domain.ErrNodeNotFound
}

func (r *stubNodeRepo) ListActive(context.Context) ([]*domain.ProxyNode, error) { return nil, nil }

func (r *stubNodeRepo) List(context.Context) ([]*domain.ProxyNode, error) {
	out := make([]*domain.ProxyNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (r *stubNodeRepo) IncrementConnections(context.Context, string, int) error { return nil }
func (r *stubNodeRepo) RecordSync(context.Context, string, ports.AgentMetrics) error {
	return nil
}
func (r *stubNodeRepo) UpdateStatus(context.Context, string, domain.NodeStatus) error { return nil }

type stubAllocationRepo struct {
	byUser map[string]*domain.Allocation
}

func (r *stubAllocationRepo) FindByUser(_ context.Context, userID string) (*domain.Allocation, error) {
	if a, ok := r.byUser[userID]; ok {
		return a, nil
	}
	return nil, domain.ErrAllocationNotFound
}

func (r *stubAllocationRepo) ListByNode(context.Context, string) ([]*domain.Allocation, error) {
	return nil, nil
}
func (r *stubAllocationRepo) Create(context.Context, *domain.Allocation) error        { return nil }
func (r *stubAllocationRepo) UpdateSpeedLimit(context.Context, string, int) error     { return nil }
func (r *stubAllocationRepo) DeleteByUser(context.Context, string) (*domain.Allocation, error) {
	return nil, domain.ErrAllocationNotFound
}

type stubDomainRepo struct {
	domains   []*domain.EntryDomain
	createErr error
}

func (r *stubDomainRepo) FindActive(context.Context) (*domain.EntryDomain, error) {
	for _, d := range r.domains {
		if d.Status == domain.DomainActive {
			return d, nil
		}
	}
	return nil, domain.ErrDomainNotFound
}

func (r *stubDomainRepo) FindFirstStandby(context.Context) (*domain.EntryDomain, error) {
	for _, d := range r.domains {
		if d.Status == domain.DomainStandby {
			return d, nil
		}
	}
	return nil, domain.ErrDomainNotFound
}

func (r *stubDomainRepo) Create(_ context.Context, d *domain.EntryDomain) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.domains = append(r.domains, d)
	return nil
}

func (r *stubDomainRepo) List(context.Context) ([]*domain.EntryDomain, error) {
	return r.domains, nil
}

func (r *stubDomainRepo) TransitionStatus(context.Context, string, domain.DomainStatus, domain.DomainStatus) error {
	return nil
}

type stubAccountRepo struct {
	accounts map[string]*domain.Account
	blocked  map[string]bool
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) SetBlocked(_ context.Context, id string, blocked bool) error {
	if r.blocked == nil {
		r.blocked = make(map[string]bool)
	}
	r.blocked[id] = blocked
	return nil
}

type stubAllocator struct {
	released []string
}

func (a *stubAllocator) Allocate(context.Context, string, string) (*domain.Allocation, error) {
	return nil, domain.ErrNoCapacity
}

func (a *stubAllocator) ReleaseUser(_ context.Context, userID string) error {
	a.released = append(a.released, userID)
	return nil
}
