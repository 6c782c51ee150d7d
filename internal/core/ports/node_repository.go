package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// AgentMetrics carries the health stats a node agent may push during sync.
// Nil fields mean "not reported this round" and leave the stored value alone.
type AgentMetrics struct {
	CPULoad           *float64
	ActiveConnections *int
}

// NodeRepository defines persistence operations for backend relay nodes.
type NodeRepository interface {
	// Create registers a node in the provisioning state.
	// Returns domain.ErrNodeExists when the public IP is already registered.
	Create(ctx context.Context, n *domain.ProxyNode) error
	FindByID(ctx context.Context, id string) (*domain.ProxyNode, error)
	FindByPublicIP(ctx context.Context, publicIP string) (*domain.ProxyNode, error)
	// ListActive returns active nodes ordered by (activeConnections, id) so
	// allocator node selection is deterministic.
	ListActive(ctx context.Context) ([]*domain.ProxyNode, error)
	List(ctx context.Context) ([]*domain.ProxyNode, error)
	// IncrementConnections adjusts the node's connection counter by delta
	// (negative to decrement; never below zero).
	IncrementConnections(ctx context.Context, nodeID string, delta int) error
	// RecordSync stamps lastPing, promotes the node to active, and merges any
	// reported metrics.
	RecordSync(ctx context.Context, nodeID string, metrics AgentMetrics) error
	UpdateStatus(ctx context.Context, nodeID string, status domain.NodeStatus) error
}
