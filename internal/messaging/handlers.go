package messaging

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

type MessagingService interface {
	Start(ctx context.Context, userID string, req StartRequest) (*Conversation, error)
	List(ctx context.Context, userID string) ([]Conversation, error)
	Messages(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]Message, error)
	Send(ctx context.Context, userID, conversationID string, req SendRequest) (*Message, error)
	MarkRead(ctx context.Context, userID, conversationID string) (int64, error)
	Delete(ctx context.Context, userID, conversationID string) error
	Contacts(ctx context.Context, userID string) ([]string, error)

	AdminList(ctx context.Context, state State, limit, offset int) ([]Conversation, error)
	AdminMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]Message, error)
	PermanentlyDelete(ctx context.Context, adminID, conversationID string) error
}

type Handler struct {
	log *logrus.Logger
	svc MessagingService
	hub *Hub
}

func NewHandler(log *logrus.Logger, svc MessagingService, hub *Hub) *Handler {
	return &Handler{log: log, svc: svc, hub: hub}
}

// POST /conversations
func (h *Handler) Start(c echo.Context) error {
	req := new(StartRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	conv, err := h.svc.Start(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// GET /conversations
func (h *Handler) List(c echo.Context) error {
	convs, err := h.svc.List(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": convs})
}

// parseBefore reads ?before= as RFC3339 and ?limit= for message pages.
func parseBefore(c echo.Context) (*time.Time, int, error) {
	limit := pagination.FromRequest(c).Limit
	raw := c.QueryParam("before")
	if raw == "" {
		return nil, limit, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, 0, err
	}
	return &t, limit, nil
}

// GET /conversations/:id/messages?before=&limit=
func (h *Handler) Messages(c echo.Context) error {
	before, limit, err := parseBefore(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid before timestamp, use RFC3339"})
	}
	msgs, err := h.svc.Messages(c.Request().Context(), middleware.UserID(c), c.Param("id"), before, limit)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// POST /conversations/:id/messages
func (h *Handler) Send(c echo.Context) error {
	req := new(SendRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	m, err := h.svc.Send(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// POST /conversations/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	n, err := h.svc.MarkRead(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked_read": n})
}

// DELETE /conversations/:id
func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return apperr.JSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /presence/:id
func (h *Handler) Presence(c echo.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "online": h.hub.Online(id)})
}

// GET /ws - realtime events for the authenticated user
func (h *Handler) ServeWS(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.hub.serve(userID, ws,
		func() { h.announcePresence(userID, true) },
		func() { h.announcePresence(userID, false) },
	)
	return nil
}

func (h *Handler) announcePresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	contacts, err := h.svc.Contacts(ctx, userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("presence lookup failed")
		return
	}
	evt := Event{Type: EventPresence, Data: echo.Map{"user_id": userID, "online": online}}
	for _, uid := range contacts {
		h.hub.Publish(uid, evt)
	}
}

// ===== Admin =====

// GET /admin/conversations?state=
func (h *Handler) AdminList(c echo.Context) error {
	var state State
	if raw := c.QueryParam("state"); raw != "" {
		st, ok := ParseState(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "state must be one of: active soft_deleted permanently_deleted"})
		}
		state = st
	}
	p := pagination.FromRequest(c)

	convs, err := h.svc.AdminList(c.Request().Context(), state, p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": convs, "page": p.Page, "limit": p.Limit})
}

// GET /admin/conversations/:id/messages
func (h *Handler) AdminMessages(c echo.Context) error {
	before, limit, err := parseBefore(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid before timestamp, use RFC3339"})
	}
	msgs, err := h.svc.AdminMessages(c.Request().Context(), c.Param("id"), before, limit)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// POST /admin/conversations/:id/permanent-delete
func (h *Handler) PermanentlyDelete(c echo.Context) error {
	if err := h.svc.PermanentlyDelete(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "conversation permanently deleted", "conversation_id": c.Param("id")})
}
