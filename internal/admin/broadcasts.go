package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/alerts"
	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

// Broadcast records the message and queues delivery. Recipients are
// resolved when the worker runs, so users who sign up in between get it too.
func (s *Service) Broadcast(ctx context.Context, adminID string, req BroadcastRequest) (*Broadcast, error) {
	const op = "admin.Service.Broadcast"

	b := &Broadcast{AdminID: adminID, Content: req.Content}
	if req.Role != "" {
		role := req.Role
		b.TargetRole = &role
	}
	if err := s.store.CreateBroadcast(ctx, b); err != nil {
		return nil, s.adminErr(op, err)
	}

	err := s.queue.EnqueueBroadcast(ctx, alerts.BroadcastPayload{
		BroadcastID: b.ID,
		AdminID:     adminID,
		Content:     req.Content,
		TargetRole:  req.Role,
	})
	if err != nil {
		if ferr := s.store.FinishBroadcast(ctx, b.ID, BroadcastFailed, 0); ferr != nil {
			s.log.WithError(ferr).WithField("broadcast_id", b.ID).Error("failed to mark broadcast failed")
		}
		return nil, s.adminErr(op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "broadcast_id": b.ID, "role": req.Role}).Info("broadcast scheduled")
	return b, nil
}

func (s *Service) Broadcasts(ctx context.Context, limit, offset int) ([]Broadcast, error) {
	items, err := s.store.ListBroadcasts(ctx, limit, offset)
	if err != nil {
		return nil, s.adminErr("admin.Service.Broadcasts", err)
	}
	return nonNil(items), nil
}

// POST /admin/broadcasts
func (h *Handler) Broadcast(c echo.Context) error {
	req := new(BroadcastRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	b, err := h.svc.Broadcast(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusAccepted, b)
}

// GET /admin/broadcasts
func (h *Handler) Broadcasts(c echo.Context) error {
	p := pagination.FromRequest(c)
	items, err := h.svc.Broadcasts(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"broadcasts": items, "page": p.Page, "limit": p.Limit})
}
