package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

func accountKey(userID string) string { return "user:account:" + userID }

func (s *Service) Users(ctx context.Context, f UserFilter) ([]AdminUser, error) {
	items, err := s.store.ListUsers(ctx, f)
	if err != nil {
		return nil, s.adminErr("admin.Service.Users", err)
	}
	return nonNil(items), nil
}

// SetBanned bans or unbans a user. Admins cannot ban themselves or other
// admins; demote first.
func (s *Service) SetBanned(ctx context.Context, adminID, userID string, banned bool) (*AdminUser, error) {
	const op = "admin.Service.SetBanned"

	if adminID == userID {
		return nil, apperr.Forbidden("you cannot ban yourself")
	}
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, s.adminErr(op, err)
	}
	if banned && u.Role == middleware.RoleAdmin {
		return nil, apperr.Forbidden("admins cannot be banned; change the role first")
	}
	if err := s.store.SetActive(ctx, userID, !banned); err != nil {
		return nil, s.adminErr(op, err)
	}
	u.IsActive = !banned
	s.forgetAccount(ctx, userID)

	s.log.WithFields(logrus.Fields{"op": op, "admin_id": adminID, "user_id": userID, "banned": banned}).Info("user ban state changed")
	return u, nil
}

func (s *Service) SetRole(ctx context.Context, adminID, userID, role string) (*AdminUser, error) {
	const op = "admin.Service.SetRole"

	if adminID == userID {
		return nil, apperr.Forbidden("you cannot change your own role")
	}
	if err := s.store.SetRole(ctx, userID, role); err != nil {
		return nil, s.adminErr(op, err)
	}
	s.forgetAccount(ctx, userID)
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, s.adminErr(op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "admin_id": adminID, "user_id": userID, "role": role}).Info("user role changed")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, userID, "role_changed", "Your role changed", "You are now "+role+". Sign in again to use it.", ""); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("role notification failed")
		}
	}
	return u, nil
}

// Account returns the stored ban state and role of a user. Answers are
// cached until a ban or role change drops them or the entry expires.
func (s *Service) Account(ctx context.Context, userID string) (middleware.Account, error) {
	var acc middleware.Account
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, accountKey(userID)); err == nil {
			if json.Unmarshal(raw, &acc) == nil {
				return acc, nil
			}
		}
	}
	active, role, err := s.store.Account(ctx, userID)
	if err != nil {
		return middleware.Account{}, err
	}
	acc = middleware.Account{Active: active, Role: role}
	if s.cache != nil {
		if err := s.cache.Set(ctx, accountKey(userID), acc); err != nil {
			s.log.WithError(err).Debug("failed to cache account state")
		}
	}
	return acc, nil
}

func (s *Service) forgetAccount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, accountKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to drop cached account state")
	}
}

// GET /admin/users?role=&q=&active=
func (h *Handler) Users(c echo.Context) error {
	p := pagination.FromRequest(c)
	f := UserFilter{Role: c.QueryParam("role"), Query: c.QueryParam("q"), Limit: p.Limit, Offset: p.Offset}
	switch f.Role {
	case "", middleware.RoleClient, middleware.RoleExecutor, middleware.RoleAdmin:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be one of: client executor admin"})
	}
	if raw := c.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "active must be true or false"})
		}
		f.Active = &v
	}

	users, err := h.svc.Users(c.Request().Context(), f)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users, "page": p.Page, "limit": p.Limit})
}

// POST /admin/users/:id/ban
func (h *Handler) Ban(c echo.Context) error {
	return h.setBanned(c, true)
}

// POST /admin/users/:id/unban
func (h *Handler) Unban(c echo.Context) error {
	return h.setBanned(c, false)
}

func (h *Handler) setBanned(c echo.Context, banned bool) error {
	u, err := h.svc.SetBanned(c.Request().Context(), middleware.UserID(c), c.Param("id"), banned)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// POST /admin/users/:id/role
func (h *Handler) SetRole(c echo.Context) error {
	req := new(SetRoleRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	u, err := h.svc.SetRole(c.Request().Context(), middleware.UserID(c), c.Param("id"), req.Role)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
