package ports

import "github.com/superproxy/relay-gateway/internal/core/domain"

// SessionCodec signs and verifies compact relay session credentials.
// Verification failures of any kind collapse to domain.ErrInvalidSession.
type SessionCodec interface {
	Issue(cred domain.SessionCredential) (string, error)
	Verify(token string) (domain.SessionCredential, error)
}
