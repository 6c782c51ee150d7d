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

const collectionAllocations = "allocations"

type AllocationRepository struct {
	col *mongo.Collection
}

func NewAllocationRepository(db *mongo.Database) *AllocationRepository {
	return &AllocationRepository{col: db.Collection(collectionAllocations)}
}

var _ ports.AllocationRepository = (*AllocationRepository)(nil)

func (r *AllocationRepository) FindByUser(ctx context.Context, userID string) (*domain.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Allocation
	if err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AllocationRepository) ListByNode(ctx context.Context, nodeID string) ([]*domain.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{"node_id": nodeID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var allocations []*domain.Allocation
	if err := cursor.All(ctx, &allocations); err != nil {
		return nil, err
	}
	return allocations, nil
}

// Create inserts an allocation. The unique {node_id, port} index backstops
// the allocator's per-node serialization: a port collision that slips through
// surfaces as domain.ErrNoPortsAvailable instead of silently double-binding.
func (r *AllocationRepository) Create(ctx context.Context, a *domain.Allocation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrNoPortsAvailable
	}
	return err
}

func (r *AllocationRepository) UpdateSpeedLimit(ctx context.Context, userID string, speedLimitMbps int) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"speed_limit_mbps": speedLimitMbps}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrAllocationNotFound
	}
	return nil
}

func (r *AllocationRepository) DeleteByUser(ctx context.Context, userID string) (*domain.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Allocation
	if err := r.col.FindOneAndDelete(ctx, bson.M{"user_id": userID}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, err
	}
	return &a, nil
}

// EnsureIndexes creates the allocation indexes: one allocation per user, one
// owner per node/port pair.
func (r *AllocationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "node_id", Value: 1}, {Key: "port", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
