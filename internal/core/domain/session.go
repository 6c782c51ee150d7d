package domain

// SessionCredential is the signed payload bound into a relay session token.
// It is opaque to the client and immutable once issued.
type SessionCredential struct {
	UserID       string `json:"userId"`
	PlanID       string `json:"planId"`
	CredentialID string `json:"credentialId"`
	// IssuedAt is a unix timestamp in milliseconds.
	IssuedAt int64 `json:"issuedAt"`
	// ExpiresAt is a unix timestamp in milliseconds. Zero means the token
	// never expires.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}
