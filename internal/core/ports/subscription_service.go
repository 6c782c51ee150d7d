package ports

import "context"

// SubscriptionInfo is the connection bundle handed to the account-resolution
// path: where to connect, at what speed, and the signed session token.
type SubscriptionInfo struct {
	UserID         string `json:"userId"`
	PlanID         string `json:"planId"`
	NodeIP         string `json:"nodeIP"`
	DomainName     string `json:"domainName"`
	ConnectionPort int    `json:"connectionPort"`
	SpeedLimitMbps int    `json:"speedLimitMbps"`
	SessionToken   string `json:"sessionToken"`
}

// SubscriptionService resolves a user into a ready-to-use relay subscription.
// Quota enforcement happens here, at establishment time.
type SubscriptionService interface {
	Resolve(ctx context.Context, userID string) (*SubscriptionInfo, error)
}
