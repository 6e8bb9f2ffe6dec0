package admin

import "context"

type AdminService interface {
	Stats(ctx context.Context) (*Stats, error)
	Orders(ctx context.Context, status string, limit, offset int) ([]AdminOrder, error)
	Wallets(ctx context.Context, limit, offset int) ([]AdminWallet, error)

	Users(ctx context.Context, f UserFilter) ([]AdminUser, error)
	SetBanned(ctx context.Context, adminID, userID string, banned bool) (*AdminUser, error)
	SetRole(ctx context.Context, adminID, userID, role string) (*AdminUser, error)

	Broadcast(ctx context.Context, adminID string, req BroadcastRequest) (*Broadcast, error)
	Broadcasts(ctx context.Context, limit, offset int) ([]Broadcast, error)
}

type Handler struct {
	svc AdminService
}

func NewHandler(svc AdminService) *Handler {
	return &Handler{svc: svc}
}
