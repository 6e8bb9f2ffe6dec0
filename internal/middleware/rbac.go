package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// RequireRoles lets a request through only when the caller's role is one of
// roles. It must run after JWT.
//
//	api.POST("/orders", h.CreateOrder, RequireRoles(RoleClient))
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			switch {
			case role == "":
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role missing"})
			case !slices.Contains(roles, role):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
			}
			return next(c)
		}
	}
}

// AdminGuard closes the /admin group to everyone but admins.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Role(c) != RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access only"})
		}
		return next(c)
	}
}
