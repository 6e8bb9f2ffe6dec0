package admin

import "time"

type Stats struct {
	UsersByRole          map[string]int `json:"users_by_role"`
	BannedUsers          int            `json:"banned_users"`
	OrdersByStatus       map[string]int `json:"orders_by_status"`
	PendingTransactions  int            `json:"pending_transactions"`
	PendingDepositAmount int64          `json:"pending_deposit_amount"`
	CoinsInCirculation   int64          `json:"coins_in_circulation"`
	CoinsHeld            int64          `json:"coins_held"`
	OpenTickets          int            `json:"open_tickets"`
	ActiveConversations  int            `json:"active_conversations"`
}

type AdminUser struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Role            string    `json:"role"`
	IsActive        bool      `json:"is_active"`
	Rating          float64   `json:"rating"`
	CompletedOrders int       `json:"completed_orders"`
	Balance         int64     `json:"balance"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserFilter struct {
	Role   string
	Query  string
	Active *bool
	Limit  int
	Offset int
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=client executor admin"`
}

type AdminOrder struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ClientID     string    `json:"client_id"`
	ClientName   string    `json:"client_name"`
	ExecutorID   *string   `json:"executor_id,omitempty"`
	ExecutorName *string   `json:"executor_name,omitempty"`
	Price        int64     `json:"price"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	BidCount     int       `json:"bid_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AdminWallet struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Balance   int64     `json:"balance"`
	Held      int64     `json:"held"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	BroadcastPending = "pending"
	BroadcastSent    = "sent"
	BroadcastFailed  = "failed"
)

type Broadcast struct {
	ID         string     `json:"id"`
	AdminID    string     `json:"admin_id"`
	Content    string     `json:"content"`
	TargetRole *string    `json:"target_role"`
	Recipients int        `json:"recipients"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

type BroadcastRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
	// Role limits the audience; empty sends to every active non-admin user.
	Role string `json:"role" validate:"omitempty,oneof=client executor"`
}
