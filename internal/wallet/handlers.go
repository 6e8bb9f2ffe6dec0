package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/pagination"
)

type WalletService interface {
	Balance(ctx context.Context, userID string) (*Wallet, error)
	History(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
	Deposit(ctx context.Context, userID string, req DepositRequest) (*Transaction, error)
	Withdraw(ctx context.Context, userID string, req WithdrawRequest) (*Transaction, error)
	AdminList(ctx context.Context, f TxFilter) ([]Transaction, error)
	Approve(ctx context.Context, adminID, txID string, req ReviewRequest) (*Transaction, error)
	Reject(ctx context.Context, adminID, txID string, req ReviewRequest) (*Transaction, error)
	Adjust(ctx context.Context, adminID, userID string, req AdjustRequest) (*Transaction, error)
}

type Handler struct {
	svc WalletService
}

func NewHandler(svc WalletService) *Handler {
	return &Handler{svc: svc}
}

// Balance returns the authenticated user's wallet balance
func (h *Handler) Balance(c echo.Context) error {
	w, err := h.svc.Balance(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// Transactions returns the caller's history, newest first
func (h *Handler) Transactions(c echo.Context) error {
	p := pagination.FromRequest(c)
	txs, err := h.svc.History(c.Request().Context(), middleware.UserID(c), p.Limit, p.Offset)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs, "page": p.Page, "limit": p.Limit})
}

// POST /wallet/deposits
func (h *Handler) Deposit(c echo.Context) error {
	req := new(DepositRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := h.svc.Deposit(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction": t,
		"message":     "Deposit submitted. Your balance is credited once an admin verifies the payment.",
	})
}

// POST /wallet/withdrawals
func (h *Handler) Withdraw(c echo.Context) error {
	req := new(WithdrawRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := h.svc.Withdraw(c.Request().Context(), middleware.UserID(c), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction": t,
		"message":     "Withdrawal requested. The amount is on hold until an admin processes it.",
	})
}

// AdminListTransactions returns transactions for admin monitoring, filtered
// by ?status= and ?type=.
func (h *Handler) AdminListTransactions(c echo.Context) error {
	p := pagination.FromRequest(c)
	f := TxFilter{
		Status: c.QueryParam("status"),
		Type:   c.QueryParam("type"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	txs, err := h.svc.AdminList(c.Request().Context(), f)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs, "page": p.Page, "limit": p.Limit})
}

// AdminUserTransactions returns every transaction of one user
func (h *Handler) AdminUserTransactions(c echo.Context) error {
	p := pagination.FromRequest(c)
	txs, err := h.svc.AdminList(c.Request().Context(), TxFilter{UserID: c.Param("id"), Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs, "page": p.Page, "limit": p.Limit})
}

// POST /admin/transactions/:id/approve
func (h *Handler) Approve(c echo.Context) error {
	return h.review(c, h.svc.Approve)
}

// POST /admin/transactions/:id/reject
func (h *Handler) Reject(c echo.Context) error {
	return h.review(c, h.svc.Reject)
}

func (h *Handler) review(c echo.Context, fn func(context.Context, string, string, ReviewRequest) (*Transaction, error)) error {
	req := new(ReviewRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := fn(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// POST /admin/users/:id/balance
func (h *Handler) Adjust(c echo.Context) error {
	req := new(AdjustRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return apperr.JSON(c, err)
	}

	t, err := h.svc.Adjust(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req)
	if err != nil {
		return apperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
