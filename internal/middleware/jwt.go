package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type TokenVerifier interface {
	Verify(token string) (userID, role string, err error)
}

// JWT authenticates the request from "Authorization: Bearer <token>" or,
// for websocket upgrades that cannot set headers, the "token" query param.
func JWT(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if tokenStr == "" {
				tokenStr = c.QueryParam("token")
			}
			if tokenStr == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing Authorization header"})
			}

			userID, role, err := v.Verify(tokenStr)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			SetIdentity(c, userID, role)
			return next(c)
		}
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
