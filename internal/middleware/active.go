package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Account is the stored state of a caller, which wins over the token claims.
type Account struct {
	Active bool   `json:"active"`
	Role   string `json:"role"`
}

type AccountChecker interface {
	Account(ctx context.Context, userID string) (Account, error)
}

// RequireActive rejects banned accounts even while their token is valid and
// replaces the token role with the stored one, so demotions apply at once.
// Must run after JWT and before any role guard. When the lookup fails,
// non-admin tokens pass through and admin tokens get 503.
func RequireActive(chk AccountChecker, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := UserID(c)
			if userID == "" {
				return next(c)
			}
			acc, err := chk.Account(c.Request().Context(), userID)
			if err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("account state lookup failed")
				if Role(c) == RoleAdmin {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "account state unavailable"})
				}
				return next(c)
			}
			if !acc.Active {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
			}
			if acc.Role != "" && acc.Role != Role(c) {
				log.WithFields(logrus.Fields{"user_id": userID, "token_role": Role(c), "role": acc.Role}).Debug("token role is stale")
				SetIdentity(c, userID, acc.Role)
			}
			return next(c)
		}
	}
}
