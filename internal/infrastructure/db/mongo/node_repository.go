package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

const collectionNodes = "nodes"

type NodeRepository struct {
	col *mongo.Collection
}

func NewNodeRepository(db *mongo.Database) *NodeRepository {
	return &NodeRepository{col: db.Collection(collectionNodes)}
}

var _ ports.NodeRepository = (*NodeRepository)(nil)

// Create registers a node in the provisioning state. The unique index on
// public_ip turns re-registration into domain.ErrNodeExists.
func (r *NodeRepository) Create(ctx context.Context, n *domain.ProxyNode) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrNodeExists
	}
	return err
}

func (r *NodeRepository) FindByID(ctx context.Context, id string) (*domain.ProxyNode, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *NodeRepository) FindByPublicIP(ctx context.Context, publicIP string) (*domain.ProxyNode, error) {
	return r.findOne(ctx, bson.M{"public_ip": publicIP})
}

func (r *NodeRepository) findOne(ctx context.Context, filter bson.M) (*domain.ProxyNode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n domain.ProxyNode
	if err := r.col.FindOne(ctx, filter).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNodeNotFound
		}
		return nil, err
	}
	return &n, nil
}

// ListActive returns active nodes ordered by (active_connections, _id) so the
// allocator's node choice is stable across calls.
func (r *NodeRepository) ListActive(ctx context.Context) ([]*domain.ProxyNode, error) {
	return r.list(ctx, bson.M{"status": domain.NodeActive},
		options.Find().SetSort(bson.D{{Key: "active_connections", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *NodeRepository) List(ctx context.Context) ([]*domain.ProxyNode, error) {
	return r.list(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *NodeRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.ProxyNode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var nodes []*domain.ProxyNode
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// IncrementConnections adjusts the connection counter by delta.
func (r *NodeRepository) IncrementConnections(ctx context.Context, nodeID string, delta int) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, nodeID, bson.M{
		"$inc": bson.M{"active_connections": delta},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNodeNotFound
	}
	// Concurrent releases can briefly push the counter negative; clamp.
	if delta < 0 {
		_, _ = r.col.UpdateOne(ctx,
			bson.M{"_id": nodeID, "active_connections": bson.M{"$lt": 0}},
			bson.M{"$set": bson.M{"active_connections": 0}})
	}
	return nil
}

// RecordSync stamps last_ping, promotes the node to active, and merges any
// reported metrics (nil fields leave stored values untouched).
func (r *NodeRepository) RecordSync(ctx context.Context, nodeID string, metrics ports.AgentMetrics) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{
		"last_ping": time.Now().UTC(),
		"status":    domain.NodeActive,
	}
	if metrics.CPULoad != nil {
		set["cpu_load"] = *metrics.CPULoad
	}
	if metrics.ActiveConnections != nil {
		set["active_connections"] = *metrics.ActiveConnections
	}

	res, err := r.col.UpdateByID(ctx, nodeID, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNodeNotFound
	}
	return nil
}

func (r *NodeRepository) UpdateStatus(ctx context.Context, nodeID string, status domain.NodeStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, nodeID, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNodeNotFound
	}
	return nil
}

// EnsureIndexes creates the node indexes.
func (r *NodeRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "public_ip", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "active_connections", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
