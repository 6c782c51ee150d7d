package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
	"github.com/superproxy/relay-gateway/internal/infrastructure/relay"
)

// RelayHandler owns the tunnel entry point: it verifies the session token,
// enforces the quota and concurrency gates, and splices the upgraded client
// connection with the user's backend node.
type RelayHandler struct {
	codec       ports.SessionCodec
	usage       ports.UsageMeter
	allocations ports.AllocationRepository
	nodes       ports.NodeRepository
	registry    *relay.Registry
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

func NewRelayHandler(
	codec ports.SessionCodec,
	usage ports.UsageMeter,
	allocations ports.AllocationRepository,
	nodes ports.NodeRepository,
	registry *relay.Registry,
	log zerolog.Logger,
) *RelayHandler {
	return &RelayHandler{
		codec:       codec,
		usage:       usage,
		allocations: allocations,
		nodes:       nodes,
		registry:    registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// Tunnel clients are not browsers; origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Connect handles GET /sp-ws/:token.
//
// Plain HTTP requests get a liveness banner so the endpoint looks like an
// ordinary web page to casual probes. Websocket upgrade requests go through
// the full admission pipeline; every admission check runs before the upgrade
// so failures surface as proper HTTP status codes.
func (h *RelayHandler) Connect(c echo.Context) error {
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return c.String(http.StatusOK, "SuperProxy Gateway Active")
	}

	token := c.Param("token")
	if decoded, err := url.PathUnescape(token); err == nil {
		token = decoded
	}

	cred, err := h.codec.Verify(token)
	if err != nil {
		metrics.SessionsRejectedTotal.WithLabelValues("invalid_session").Inc()
		return err
	}

	ctx := c.Request().Context()

	status, err := h.usage.CurrentUsage(ctx, cred.UserID)
	if err != nil {
		return err
	}
	if status.QuotaExceeded {
		metrics.SessionsRejectedTotal.WithLabelValues("quota").Inc()
		return domain.ErrQuotaExceeded
	}

	addr, err := h.backendAddr(c, cred)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSession) {
			metrics.SessionsRejectedTotal.WithLabelValues("invalid_session").Inc()
		} else {
			metrics.SessionsRejectedTotal.WithLabelValues("backend_unavailable").Inc()
		}
		return err
	}

	session, err := h.registry.Admit(ctx, relay.AdmitRequest{
		UserID:       cred.UserID,
		Plan:         domain.ResolvePlan(cred.PlanID),
		BackendAddr:  addr,
		CredentialID: cred.CredentialID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConcurrencyRejected):
			metrics.SessionsRejectedTotal.WithLabelValues("concurrency").Inc()
		case errors.Is(err, domain.ErrBackendUnavailable):
			metrics.SessionsRejectedTotal.WithLabelValues("backend_unavailable").Inc()
		}
		return err
	}

	client, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		session.Abort()
		return nil
	}

	metrics.SessionsAdmittedTotal.WithLabelValues(cred.PlanID).Inc()
	h.log.Info().
		Str("user_id", cred.UserID).
		Str("plan", cred.PlanID).
		Str("backend", addr).
		Msg("relay session admitted")

	session.Run(client)
	return nil
}

// backendAddr resolves the user's allocation into a dialable node address and
// checks that the token's credential still matches the allocation. A stale
// credential means the allocation was rebuilt since the token was issued.
func (h *RelayHandler) backendAddr(c echo.Context, cred domain.SessionCredential) (string, error) {
	ctx := c.Request().Context()

	alloc, err := h.allocations.FindByUser(ctx, cred.UserID)
	if err != nil {
		return "", fmt.Errorf("%w: no allocation for user", domain.ErrBackendUnavailable)
	}
	if cred.CredentialID != "" && cred.CredentialID != alloc.CredentialID {
		return "", domain.ErrInvalidSession
	}

	node, err := h.nodes.FindByID(ctx, alloc.NodeID)
	if err != nil {
		return "", fmt.Errorf("%w: allocated node missing", domain.ErrBackendUnavailable)
	}
	if node.Status != domain.NodeActive {
		return "", fmt.Errorf("%w: allocated node is %s", domain.ErrBackendUnavailable, node.Status)
	}

	return net.JoinHostPort(node.PublicIP, strconv.Itoa(alloc.Port)), nil
}
