package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
)

type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID string) (*Me, error)
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error
	BootstrapAdmin(ctx context.Context, req BootstrapAdminRequest) error
}

type Handler struct {
	svc AuthService
}

func NewHandler(svc AuthService) *Handler {
	return &Handler{svc: svc}
}

// ===== Signup =====
func (h *Handler) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	res, err := h.svc.Signup(c.Request().Context(), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	res, err := h.svc.Login(c.Request().Context(), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Me returns the currently authenticated user's profile
func (h *Handler) Me(c echo.Context) error {
	m, err := h.svc.Me(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// POST /auth/password
func (h *Handler) ChangePassword(c echo.Context) error {
	req := new(ChangePasswordRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	if err := h.svc.ChangePassword(c.Request().Context(), middleware.UserID(c), *req); err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *Handler) BootstrapAdmin(c echo.Context) error {
	req := new(BootstrapAdminRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	if err := h.svc.BootstrapAdmin(c.Request().Context(), *req); err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "email": req.Email})
}
