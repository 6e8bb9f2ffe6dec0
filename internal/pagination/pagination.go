package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// FromRequest reads ?page= and ?limit=, ignoring values that do not parse.
func FromRequest(c echo.Context) Page {
	page, limit := 1, DefaultLimit
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= MaxLimit {
		limit = l
	}
	return Page{Page: page, Limit: limit, Offset: (page - 1) * limit}
}
