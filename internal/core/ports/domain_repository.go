package ports

import (
	"context"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// DomainRepository defines persistence operations for entry domains.
type DomainRepository interface {
	FindActive(ctx context.Context) (*domain.EntryDomain, error)
	// FindFirstStandby returns the oldest standby domain, or
	// domain.ErrDomainNotFound when none exists.
	FindFirstStandby(ctx context.Context) (*domain.EntryDomain, error)
	// Create registers a domain (normally in the standby state).
	// Returns domain.ErrDomainExists when the name is already registered.
	Create(ctx context.Context, d *domain.EntryDomain) error
	List(ctx context.Context) ([]*domain.EntryDomain, error)
	// TransitionStatus moves a domain from one status to another as a
	// compare-and-set: the update applies only while the domain still holds
	// the from status, and domain.ErrDomainNotFound is returned otherwise.
	TransitionStatus(ctx context.Context, id string, from, to domain.DomainStatus) error
}
