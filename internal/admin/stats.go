package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, s.adminErr("admin.Service.Stats", err)
	}
	return st, nil
}

func (s *Service) Orders(ctx context.Context, status string, limit, offset int) ([]AdminOrder, error) {
	items, err := s.store.ListOrders(ctx, status, limit, offset)
	if err != nil {
		return nil, s.adminErr("admin.Service.Orders", err)
	}
	return nonNil(items), nil
}

func (s *Service) Wallets(ctx context.Context, limit, offset int) ([]AdminWallet, error) {
	items, err := s.store.ListWallets(ctx, limit, offset)
	if err != nil {
		return nil, s.adminErr("admin.Service.Wallets", err)
	}
	return nonNil(items), nil
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// GET /admin/orders?status=
func (h *Handler) Orders(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", "open", "in_progress", "completed", "cancelled":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be one of: open in_progress completed cancelled"})
	}
	p := pagination.FromRequest(c)

	items, err := h.svc.Orders(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": items, "page": p.Page, "limit": p.Limit})
}

// GET /admin/wallets
func (h *Handler) Wallets(c echo.Context) error {
	p := pagination.FromRequest(c)
	items, err := h.svc.Wallets(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallets": items, "page": p.Page, "limit": p.Limit})
}
