package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// AgentHandler serves the node agent sync exchange. Agents identify their
// node with X-Node-IP and authenticate with the agent shared secret enforced
// by middleware.
type AgentHandler struct {
	agents ports.AgentService
}

func NewAgentHandler(agents ports.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

type agentSyncRequest struct {
	CPULoad           *float64 `json:"cpuLoad,omitempty" validate:"omitempty,gte=0,lte=100"`
	ActiveConnections *int     `json:"activeConnections,omitempty" validate:"omitempty,gte=0"`
}

// Sync handles GET|POST /api/agent/config — stamps the node's last ping,
// merges optional health metrics from the body, and returns the node's
// current allocation set with effective plan limits. Over-quota and blocked
// users are omitted so the node drops their inbound config.
//
// @Summary      Node agent configuration sync
// @Tags         agent
// @Accept       json
// @Produce      json
// @Param        X-Node-IP  header    string            true   "Public IP of the syncing node"
// @Param        body       body      agentSyncRequest  false  "Optional health metrics"
// @Success      200        {object}  ports.AgentConfig
// @Failure      401        {object}  errorResponse
// @Failure      404        {object}  errorResponse
// @Router       /api/agent/config [post]
func (h *AgentHandler) Sync(c echo.Context) error {
	nodeIP := c.Request().Header.Get("X-Node-IP")
	if nodeIP == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing X-Node-IP header")
	}

	var req agentSyncRequest
	if c.Request().Method == http.MethodPost && c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		if err := c.Validate(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	cfg, err := h.agents.Sync(c.Request().Context(), nodeIP, ports.AgentMetrics{
		CPULoad:           req.CPULoad,
		ActiveConnections: req.ActiveConnections,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}
