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

const collectionDomains = "domains"

type DomainRepository struct {
	col *mongo.Collection
}

func NewDomainRepository(db *mongo.Database) *DomainRepository {
	return &DomainRepository{col: db.Collection(collectionDomains)}
}

var _ ports.DomainRepository = (*DomainRepository)(nil)

func (r *DomainRepository) FindActive(ctx context.Context) (*domain.EntryDomain, error) {
	return r.findFirstByStatus(ctx, domain.DomainActive)
}

func (r *DomainRepository) FindFirstStandby(ctx context.Context) (*domain.EntryDomain, error) {
	return r.findFirstByStatus(ctx, domain.DomainStandby)
}

func (r *DomainRepository) findFirstByStatus(ctx context.Context, status domain.DomainStatus) (*domain.EntryDomain, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.EntryDomain
	err := r.col.FindOne(ctx, bson.M{"status": status},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDomainNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DomainRepository) Create(ctx context.Context, d *domain.EntryDomain) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDomainExists
	}
	return err
}

func (r *DomainRepository) List(ctx context.Context) ([]*domain.EntryDomain, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var domains []*domain.EntryDomain
	if err := cursor.All(ctx, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// TransitionStatus is a compare-and-set on the status field: the write only
// lands while the domain still holds from, which is what makes the failover
// swap safe against a concurrent attempt.
func (r *DomainRepository) TransitionStatus(ctx context.Context, id string, from, to domain.DomainStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDomainNotFound
	}
	return nil
}

// EnsureIndexes creates the domain indexes.
func (r *DomainRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
