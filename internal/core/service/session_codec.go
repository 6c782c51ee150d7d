package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// SessionCodec signs and verifies relay session tokens.
//
// Wire format: base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(secret, segment1)),
// both segments unpadded. The token is opaque to clients.
type SessionCodec struct {
	secret []byte
	// tokenTTL bounds token validity at issue time. Zero issues tokens
	// without an expiry claim.
	tokenTTL time.Duration
	now      func() time.Time
}

// NewSessionCodec builds a codec signing with secret. tokenTTL <= 0 disables
// the expiry claim on issued tokens.
func NewSessionCodec(secret string, tokenTTL time.Duration) *SessionCodec {
	return &SessionCodec{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

var _ ports.SessionCodec = (*SessionCodec)(nil)

// Issue signs the credential into its compact token form. IssuedAt and, when
// the codec has a TTL, ExpiresAt are stamped here.
func (c *SessionCodec) Issue(cred domain.SessionCredential) (string, error) {
	now := c.now()
	cred.IssuedAt = now.UnixMilli()
	if c.tokenTTL > 0 {
		cred.ExpiresAt = now.Add(c.tokenTTL).UnixMilli()
	}

	payload, err := json.Marshal(cred)
	if err != nil {
		return "", err
	}

	segment := base64.RawURLEncoding.EncodeToString(payload)
	return segment + "." + c.sign(segment), nil
}

// Verify checks the token and returns its credential.
//
// The signature is recomputed over the raw payload segment and compared in
// constant time before anything is decoded. All failures (malformed shape,
// bad signature, undecodable payload, missing claims, expiry) return the
// same domain.ErrInvalidSession so a forger learns nothing from the response.
func (c *SessionCodec) Verify(token string) (domain.SessionCredential, error) {
	var zero domain.SessionCredential

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return zero, domain.ErrInvalidSession
	}

	if !hmac.Equal([]byte(c.sign(parts[0])), []byte(parts[1])) {
		return zero, domain.ErrInvalidSession
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return zero, domain.ErrInvalidSession
	}

	var cred domain.SessionCredential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return zero, domain.ErrInvalidSession
	}
	if cred.UserID == "" || cred.PlanID == "" || cred.CredentialID == "" {
		return zero, domain.ErrInvalidSession
	}
	if cred.ExpiresAt != 0 && c.now().UnixMilli() >= cred.ExpiresAt {
		return zero, domain.ErrInvalidSession
	}

	return cred, nil
}

func (c *SessionCodec) sign(segment string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(segment))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
