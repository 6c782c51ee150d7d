package domain

import "errors"

// Terminal session errors. ErrInvalidSession deliberately carries no detail
// about which verification step failed.
var (
	ErrInvalidSession      = errors.New("invalid session")
	ErrConcurrencyRejected = errors.New("concurrent session limit reached")
	ErrBackendUnavailable  = errors.New("backend relay unavailable")
	ErrQuotaExceeded       = errors.New("monthly traffic quota exceeded")
)

// Allocator errors.
var (
	ErrNoCapacity       = errors.New("no active proxy nodes or domains available")
	ErrNoPortsAvailable = errors.New("no free ports available on node")
)

// Usage accounting errors.
var ErrInvalidUsage = errors.New("bytesUsed must be a positive integer")

// Failover errors.
var ErrFailoverUnavailable = errors.New("no standby domain available for failover")

// Storage sentinels.
var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrDomainNotFound     = errors.New("domain not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNodeExists         = errors.New("node already registered")
	ErrDomainExists       = errors.New("domain already registered")
)

// ErrAccountBlocked marks a user whose account has been administratively
// disabled; any session resolution for them is refused.
var ErrAccountBlocked = errors.New("account is blocked")
