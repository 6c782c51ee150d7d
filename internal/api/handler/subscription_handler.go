package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// SubscriptionHandler exposes the account-resolution surface: given a user,
// return the connection bundle (entry domain, speed limit, session token).
type SubscriptionHandler struct {
	subscriptions ports.SubscriptionService
}

func NewSubscriptionHandler(subscriptions ports.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Resolve handles GET /api/subscription/:userId — allocates (or reuses) the
// user's node and port, issues a session token, and returns connection info.
//
// @Summary      Resolve a user's relay subscription
// @Tags         subscription
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  ports.SubscriptionInfo
// @Failure      403     {object}  errorResponse
// @Failure      404     {object}  errorResponse
// @Failure      503     {object}  errorResponse
// @Router       /api/subscription/{userId} [get]
func (h *SubscriptionHandler) Resolve(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing user id")
	}

	info, err := h.subscriptions.Resolve(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}
