package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// AccountRepository reads the account slice the gateway needs (plan, blocked
// flag). Accounts themselves are owned by the external billing service.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
}
