package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ValidIDs answers 404 for a route whose :id (or :xxx_id) path param is not
// a UUID, before the lookup reaches Postgres.
func ValidIDs(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, name := range c.ParamNames() {
			if name != "id" && !strings.HasSuffix(name, "_id") {
				continue
			}
			if uuid.Validate(c.Param(name)) != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
			}
		}
		return next(c)
	}
}
