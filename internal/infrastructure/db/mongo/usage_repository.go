package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

const collectionUsage = "usage_periods"

// UsageRepository stores one usage document per user, keyed by user id.
// Period rollover is handled by the service layer; this type only persists.
type UsageRepository struct {
	col *mongo.Collection
}

func NewUsageRepository(db *mongo.Database) *UsageRepository {
	return &UsageRepository{col: db.Collection(collectionUsage)}
}

var _ ports.UsageRepository = (*UsageRepository)(nil)

func (r *UsageRepository) Find(ctx context.Context, userID string) (*domain.UsagePeriod, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u domain.UsagePeriod
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UsageRepository) Save(ctx context.Context, u *domain.UsagePeriod) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.UserID}, u, options.Replace().SetUpsert(true))
	return err
}
