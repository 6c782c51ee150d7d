package ports

import "context"

// AgentAllocation is one allocation entry in a node agent's sync response,
// with the effective limits of the owning user's current plan applied.
type AgentAllocation struct {
	UserID                string `json:"userId"`
	Email                 string `json:"email"`
	PlanID                string `json:"planId"`
	CredentialID          string `json:"credentialId"`
	Port                  int    `json:"port"`
	SpeedLimitMbps        int    `json:"speedLimitMbps"`
	MonthlyTrafficLimitGB int    `json:"monthlyTrafficLimitGb"`
	DeviceLimit           int    `json:"deviceLimit"`
}

// AgentConfig is the full configuration payload returned to a syncing node.
type AgentConfig struct {
	NodeConfig []AgentAllocation `json:"node_config"`
}

// AgentService handles the node agent sync exchange: the agent authenticates
// with the shared secret, optionally pushes health metrics, and receives its
// current allocation set. Users over quota are omitted from the response.
type AgentService interface {
	Sync(ctx context.Context, nodeIP string, metrics AgentMetrics) (*AgentConfig, error)
}
