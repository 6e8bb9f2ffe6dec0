package catalog

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
)

type CatalogService interface {
	List(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, req CreateRequest) (*Category, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Category, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	svc CatalogService
}

func NewHandler(svc CatalogService) *Handler {
	return &Handler{svc: svc}
}

// GET /categories
func (h *Handler) List(c echo.Context) error {
	cats, err := h.svc.List(c.Request().Context())
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// POST /admin/categories
func (h *Handler) Create(c echo.Context) error {
	req := new(CreateRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	cat, err := h.svc.Create(c.Request().Context(), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, cat)
}

// PATCH /admin/categories/:id
func (h *Handler) Update(c echo.Context) error {
	req := new(UpdateRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	cat, err := h.svc.Update(c.Request().Context(), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, cat)
}

// DELETE /admin/categories/:id
func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.JSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
