package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// AdminHandler covers the operator surface: node and entry-domain registration
// and account blocking. All routes sit behind JWT auth with the admin role.
type AdminHandler struct {
	nodes     ports.NodeRepository
	domains   ports.DomainRepository
	accounts  ports.AccountRepository
	allocator ports.Allocator
	log       zerolog.Logger
}

func NewAdminHandler(
	nodes ports.NodeRepository,
	domains ports.DomainRepository,
	accounts ports.AccountRepository,
	allocator ports.Allocator,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		nodes:     nodes,
		domains:   domains,
		accounts:  accounts,
		allocator: allocator,
		log:       log,
	}
}

type registerNodeRequest struct {
	Name     string `json:"name" validate:"required"`
	PublicIP string `json:"publicIp" validate:"required,ip"`
}

// RegisterNode handles POST /api/admin/nodes — registers a backend node in
// the provisioning state. The node goes active on its first agent sync.
func (h *AdminHandler) RegisterNode(c echo.Context) error {
	var req registerNodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	node := &domain.ProxyNode{
		Name:      req.Name,
		PublicIP:  req.PublicIP,
		Status:    domain.NodeProvisioning,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.nodes.Create(c.Request().Context(), node); err != nil {
		return err
	}

	h.log.Info().Str("node", node.Name).Str("public_ip", node.PublicIP).Msg("node registered")
	return c.JSON(http.StatusCreated, node)
}

// ListNodes handles GET /api/admin/nodes.
func (h *AdminHandler) ListNodes(c echo.Context) error {
	nodes, err := h.nodes.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nodes)
}

type registerDomainRequest struct {
	DomainName string `json:"domainName" validate:"required,hostname_rfc1123"`
	// Active promotes the domain immediately instead of parking it standby.
	// Only the very first domain of a deployment should use this.
	Active bool `json:"active,omitempty"`
}

// RegisterDomain handles POST /api/admin/domains — registers an entry domain,
// standby by default so failover has something to promote.
func (h *AdminHandler) RegisterDomain(c echo.Context) error {
	var req registerDomainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status := domain.DomainStandby
	if req.Active {
		status = domain.DomainActive
	}
	entry := &domain.EntryDomain{
		DomainName: req.DomainName,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.domains.Create(c.Request().Context(), entry); err != nil {
		return err
	}

	h.log.Info().Str("domain", entry.DomainName).Str("status", string(status)).Msg("entry domain registered")
	return c.JSON(http.StatusCreated, entry)
}

// ListDomains handles GET /api/admin/domains.
func (h *AdminHandler) ListDomains(c echo.Context) error {
	domains, err := h.domains.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, domains)
}

type blockUserRequest struct {
	// Blocked defaults to true; send false to unblock.
	Blocked *bool `json:"blocked,omitempty"`
}

// BlockUser handles POST /api/admin/users/:id/block — flips the account's
// blocked flag. Blocking also releases the user's allocation so the node
// drops their inbound on its next sync.
func (h *AdminHandler) BlockUser(c echo.Context) error {
	userID := c.Param("id")

	var req blockUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	blocked := true
	if req.Blocked != nil {
		blocked = *req.Blocked
	}

	ctx := c.Request().Context()
	if _, err := h.accounts.FindByID(ctx, userID); err != nil {
		return err
	}
	if err := h.accounts.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	if blocked {
		if err := h.allocator.ReleaseUser(ctx, userID); err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("releasing allocation for blocked user")
		}
	}

	h.log.Info().Str("user_id", userID).Bool("blocked", blocked).Msg("account block state changed")
	return c.JSON(http.StatusOK, map[string]any{"userId": userID, "blocked": blocked})
}
