package support

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

type SupportService interface {
	Create(ctx context.Context, userID string, req CreateTicketRequest) (*Ticket, error)
	Mine(ctx context.Context, userID string, limit, offset int) ([]Ticket, error)
	List(ctx context.Context, status string, limit, offset int) ([]Ticket, error)
	Reply(ctx context.Context, adminID, ticketID string, req ReplyRequest) (*Ticket, error)
}

type Handler struct {
	svc SupportService
}

func NewHandler(svc SupportService) *Handler {
	return &Handler{svc: svc}
}

// POST /support/tickets
func (h *Handler) Create(c echo.Context) error {
	req := new(CreateTicketRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := h.svc.Create(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// GET /support/tickets
func (h *Handler) Mine(c echo.Context) error {
	p := pagination.FromRequest(c)
	items, err := h.svc.Mine(c.Request().Context(), middleware.UserID(c), p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": items, "page": p.Page, "limit": p.Limit})
}

// GET /admin/tickets?status=
func (h *Handler) AdminList(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", StatusOpen, StatusAnswered, StatusClosed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be one of: open answered closed"})
	}
	p := pagination.FromRequest(c)

	items, err := h.svc.List(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": items, "page": p.Page, "limit": p.Limit})
}

// POST /admin/tickets/:id/reply
func (h *Handler) Reply(c echo.Context) error {
	req := new(ReplyRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := h.svc.Reply(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
