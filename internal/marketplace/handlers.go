package marketplace

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

type MarketplaceService interface {
	CreateOrder(ctx context.Context, clientID string, req CreateOrderRequest) (*Order, error)
	ListOpenOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrder(ctx context.Context, userID, orderID string, req UpdateOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*Order, error)
	CompleteOrder(ctx context.Context, userID, orderID string) (*Order, error)

	PlaceBid(ctx context.Context, executorID, orderID string, req PlaceBidRequest) (*Bid, error)
	ListBids(ctx context.Context, userID, role, orderID string) ([]Bid, error)
	WithdrawBid(ctx context.Context, executorID, bidID string) (*Bid, error)
	RejectBid(ctx context.Context, clientID, bidID string) (*Bid, error)
	AcceptBid(ctx context.Context, clientID, bidID string) (*AcceptResult, error)

	CreateReview(ctx context.Context, clientID, orderID string, req CreateReviewRequest) (*Review, error)
	GetOrderReview(ctx context.Context, userID, role, orderID string) (*Review, error)
	ExecutorReviews(ctx context.Context, executorID string, limit, offset int) (*RatingSummary, []Review, error)
	ListReviewsForModeration(ctx context.Context, moderated *bool, limit, offset int) ([]Review, error)
	ModerateReview(ctx context.Context, adminID, reviewID string, req ModerateReviewRequest) (*Review, error)
}

type Handler struct {
	svc MarketplaceService
}

func NewHandler(svc MarketplaceService) *Handler {
	return &Handler{svc: svc}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}
	return nil
}

// ===== Orders =====

// POST /orders
func (h *Handler) CreateOrder(c echo.Context) error {
	req := new(CreateOrderRequest)
	if err := bindAndValidate(c, req); err != nil || c.Response().Committed {
		return err
	}

	o, err := h.svc.CreateOrder(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// GET /orders?category_id=&priority=&page=&limit=
func (h *Handler) ListOrders(c echo.Context) error {
	p := pagination.FromRequest(c)
	if raw := c.QueryParam("category_id"); raw != "" && uuid.Validate(raw) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category_id must be a valid id"})
	}
	f := OrderFilter{
		CategoryID: c.QueryParam("category_id"),
		Priority:   c.QueryParam("priority"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}

	orders, err := h.svc.ListOpenOrders(c.Request().Context(), f)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders, "page": p.Page, "limit": p.Limit})
}

// GET /orders/my
func (h *Handler) MyOrders(c echo.Context) error {
	orders, err := h.svc.ListMyOrders(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// PATCH /orders/:id
func (h *Handler) UpdateOrder(c echo.Context) error {
	req := new(UpdateOrderRequest)
	if err := bindAndValidate(c, req); err != nil || c.Response().Committed {
		return err
	}

	o, err := h.svc.UpdateOrder(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// POST /orders/:id/cancel
func (h *Handler) CancelOrder(c echo.Context) error {
	o, err := h.svc.CancelOrder(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// POST /orders/:id/complete
func (h *Handler) CompleteOrder(c echo.Context) error {
	o, err := h.svc.CompleteOrder(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// ===== Bids =====

// POST /orders/:id/bids
func (h *Handler) PlaceBid(c echo.Context) error {
	req := new(PlaceBidRequest)
	if err := bindAndValidate(c, req); err != nil || c.Response().Committed {
		return err
	}

	b, err := h.svc.PlaceBid(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GET /orders/:id/bids
func (h *Handler) ListBids(c echo.Context) error {
	bids, err := h.svc.ListBids(c.Request().Context(), middleware.UserID(c), middleware.Role(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": bids})
}

// POST /bids/:id/accept
func (h *Handler) AcceptBid(c echo.Context) error {
	res, err := h.svc.AcceptBid(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// POST /bids/:id/reject
func (h *Handler) RejectBid(c echo.Context) error {
	b, err := h.svc.RejectBid(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// POST /bids/:id/withdraw
func (h *Handler) WithdrawBid(c echo.Context) error {
	b, err := h.svc.WithdrawBid(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ===== Reviews =====

// POST /orders/:id/review
func (h *Handler) CreateReview(c echo.Context) error {
	req := new(CreateReviewRequest)
	if err := bindAndValidate(c, req); err != nil || c.Response().Committed {
		return err
	}

	r, err := h.svc.CreateReview(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// GET /orders/:id/review
func (h *Handler) GetOrderReview(c echo.Context) error {
	r, err := h.svc.GetOrderReview(c.Request().Context(), middleware.UserID(c), middleware.Role(c), c.Param("id"))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// GET /executors/:id/reviews
func (h *Handler) ExecutorReviews(c echo.Context) error {
	p := pagination.FromRequest(c)
	summary, reviews, err := h.svc.ExecutorReviews(c.Request().Context(), c.Param("id"), p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"summary": summary, "reviews": reviews, "page": p.Page, "limit": p.Limit})
}

// GET /admin/reviews?moderated=true|false
func (h *Handler) AdminListReviews(c echo.Context) error {
	var moderated *bool
	if raw := c.QueryParam("moderated"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "moderated must be true or false"})
		}
		moderated = &v
	}
	p := pagination.FromRequest(c)

	reviews, err := h.svc.ListReviewsForModeration(c.Request().Context(), moderated, p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews, "page": p.Page, "limit": p.Limit})
}

// PATCH /admin/reviews/:id
func (h *Handler) ModerateReview(c echo.Context) error {
	req := new(ModerateReviewRequest)
	if err := bindAndValidate(c, req); err != nil || c.Response().Committed {
		return err
	}
	if req.IsVisible == nil && req.AdminBonusPoints == nil && req.Note == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to moderate"})
	}

	r, err := h.svc.ModerateReview(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
