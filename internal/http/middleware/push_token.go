package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const PushTokenHeader = "X-Push-Token"

// PushTokenMiddleware rejects push deliveries that do not carry the shared
// verification token, taken from ?token= or the X-Push-Token header. An empty
// token disables the check.
func PushTokenMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		return func(c echo.Context) error {
			got := strings.TrimSpace(c.QueryParam("token"))
			if got == "" {
				got = strings.TrimSpace(c.Request().Header.Get(PushTokenHeader))
			}
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing push token"})
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid push token"})
			}
			return next(c)
		}
	}
}
