package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SharedSecret authenticates machine callers (node agents, usage reporters)
// by a static secret carried in the named header. Comparison is constant
// time; an empty configured secret rejects everything rather than opening
// the route.
func SharedSecret(header, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(header)
			if secret == "" || got == "" ||
				subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
