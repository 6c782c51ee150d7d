package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// UsageHandler handles traffic reports from gateway instances and edge
// collaborators. Callers authenticate with the usage shared secret enforced
// by middleware in front of this handler.
type UsageHandler struct {
	meter ports.UsageMeter
}

func NewUsageHandler(meter ports.UsageMeter) *UsageHandler {
	return &UsageHandler{meter: meter}
}

type usageReportRequest struct {
	UserID    string `json:"userId" validate:"required"`
	BytesUsed int64  `json:"bytesUsed" validate:"required,gt=0"`
}

// Report handles POST /api/usage/report — adds bytes to the user's current
// billing period and returns the resulting quota status.
//
// @Summary      Report session traffic for a user
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        body  body      usageReportRequest  true  "Usage report"
// @Success      200   {object}  ports.UsageStatus
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/usage/report [post]
func (h *UsageHandler) Report(c echo.Context) error {
	var req usageReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status, err := h.meter.Report(c.Request().Context(), req.UserID, req.BytesUsed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// Current handles GET /api/usage/:userId — the user's usage in the period
// containing now. Users that never reported usage read as zero.
func (h *UsageHandler) Current(c echo.Context) error {
	status, err := h.meter.CurrentUsage(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}
