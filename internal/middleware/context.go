package middleware

import "github.com/labstack/echo/v4"

const (
	RoleClient   = "client"
	RoleExecutor = "executor"
	RoleAdmin    = "admin"

	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated caller set by JWT.
func UserID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// Role returns the authenticated caller's role set by JWT.
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// SetIdentity is used by JWT and by handler tests.
func SetIdentity(c echo.Context, userID, role string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}
