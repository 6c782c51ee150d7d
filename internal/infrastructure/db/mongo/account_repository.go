package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

const collectionAccounts = "accounts"

// AccountRepository reads the account projection the gateway needs. The
// external billing service owns the collection; the gateway only reads plans
// and flips the blocked flag on operator request.
type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(collectionAccounts)}
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Account
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"blocked": blocked}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
