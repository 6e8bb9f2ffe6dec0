package user

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
)

type Handler struct {
	log   *logrus.Logger
	store Store
}

func NewHandler(log *logrus.Logger, store Store) *Handler {
	return &Handler{log: log, store: store}
}

// GET /user/:id/profile
func (h *Handler) PublicProfile(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	p, err := h.store.PublicProfile(c.Request().Context(), userID)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to fetch profile")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch user"})
	}
	return c.JSON(http.StatusOK, p)
}

// PATCH /user/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	userID := middleware.UserID(c)

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return apperr.JSON(c, err)
	}
	if req.empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	err := h.store.UpdateProfile(c.Request().Context(), userID, req)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to update profile")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
	})
}
