package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes. The invalid-session
	// message stays generic on purpose: callers probing tokens learn nothing
	// about which check failed.
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		return http.StatusUnauthorized, "invalid session"
	case errors.Is(err, domain.ErrConcurrencyRejected):
		return http.StatusTooManyRequests, "concurrent session limit reached for this plan"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusBadGateway, "backend relay unavailable"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden, "monthly traffic quota exceeded; upgrade your plan or wait for the next period"
	case errors.Is(err, domain.ErrAccountBlocked):
		return http.StatusForbidden, "account is blocked"
	case errors.Is(err, domain.ErrNoCapacity):
		return http.StatusServiceUnavailable, "no relay capacity available"
	case errors.Is(err, domain.ErrNoPortsAvailable):
		return http.StatusServiceUnavailable, "no relay ports available"
	case errors.Is(err, domain.ErrInvalidUsage):
		return http.StatusBadRequest, "bytesUsed must be a positive number"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound, "node not found"
	case errors.Is(err, domain.ErrDomainNotFound):
		return http.StatusNotFound, "domain not found"
	case errors.Is(err, domain.ErrAllocationNotFound):
		return http.StatusNotFound, "allocation not found"
	case errors.Is(err, domain.ErrNodeExists):
		return http.StatusConflict, "node already registered"
	case errors.Is(err, domain.ErrDomainExists):
		return http.StatusConflict, "domain already registered"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
