package alerts

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	svc NotificationService
}

func NewHandler(svc NotificationService) *Handler {
	return &Handler{svc: svc}
}

// GET /notifications?unread=true
func (h *Handler) List(c echo.Context) error {
	unreadOnly := false
	if raw := c.QueryParam("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unread must be true or false"})
		}
		unreadOnly = v
	}
	p := pagination.FromRequest(c)

	items, unread, err := h.svc.List(c.Request().Context(), middleware.UserID(c), unreadOnly, p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": items,
		"unread":        unread,
		"page":          p.Page,
		"limit":         p.Limit,
	})
}

// POST /notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	if err := h.svc.MarkRead(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}

// POST /notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	n, err := h.svc.MarkAllRead(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked_read": n})
}
