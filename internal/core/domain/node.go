package domain

import "time"

// NodeStatus represents the lifecycle state of a backend relay node.
type NodeStatus string

const (
	NodeProvisioning NodeStatus = "provisioning"
	NodeActive       NodeStatus = "active"
	NodeUnreachable  NodeStatus = "unreachable"
)

// ProxyNode is a backend relay host. Created by operator registration in the
// provisioning state; promoted to active on its first successful agent sync.
type ProxyNode struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	Name              string     `json:"name" bson:"name"`
	PublicIP          string     `json:"public_ip" bson:"public_ip"`
	Status            NodeStatus `json:"status" bson:"status"`
	ActiveConnections int        `json:"active_connections" bson:"active_connections"`
	CPULoad           float64    `json:"cpu_load" bson:"cpu_load"`
	LastPing          time.Time  `json:"last_ping,omitempty" bson:"last_ping,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
}

// Allocation binds a user to a node, a relay credential, and a port that is
// unique on that node. At most one allocation exists per user. The speed limit
// is updated in place on plan change; node and port are never re-assigned.
type Allocation struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	UserID         string    `json:"user_id" bson:"user_id"`
	NodeID         string    `json:"node_id" bson:"node_id"`
	CredentialID   string    `json:"credential_id" bson:"credential_id"`
	Port           int       `json:"port" bson:"port"`
	SpeedLimitMbps int       `json:"speed_limit_mbps" bson:"speed_limit_mbps"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// DomainStatus represents the lifecycle state of an entry domain.
type DomainStatus string

const (
	DomainActive  DomainStatus = "active"
	DomainStandby DomainStatus = "standby"
	DomainBlocked DomainStatus = "blocked"
)

// EntryDomain is a publicly advertised entry hostname. Exactly one domain is
// active at any time; standbys are promoted by the failover controller.
type EntryDomain struct {
	ID         string       `json:"id" bson:"_id,omitempty"`
	DomainName string       `json:"domain_name" bson:"domain_name"`
	Status     DomainStatus `json:"status" bson:"status"`
	CreatedAt  time.Time    `json:"created_at" bson:"created_at"`
}

// Account is the slice of the user record the gateway needs: the subscription
// plan for policy decisions and the blocked flag. Account management itself
// (signup, billing, credentials) lives in an external service.
type Account struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Email     string    `json:"email" bson:"email"`
	PlanID    string    `json:"plan_id" bson:"plan_id"`
	Blocked   bool      `json:"blocked" bson:"blocked"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
