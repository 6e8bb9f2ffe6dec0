package marketplace

import "time"

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"

	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"

	BidPending   = "pending"
	BidAccepted  = "accepted"
	BidRejected  = "rejected"
	BidWithdrawn = "withdrawn"
)

// Order is a job posted by a client.
type Order struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	ExecutorID  *string    `json:"executor_id,omitempty"`
	CategoryID  *string    `json:"category_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Address     string     `json:"address"`
	Price       int64      `json:"price"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	BidCount    int        `json:"bid_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (o *Order) isParticipant(userID string) bool {
	return o.ClientID == userID || (o.ExecutorID != nil && *o.ExecutorID == userID)
}

// Bid is an executor's response to an open order.
type Bid struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	ExecutorID    string    `json:"executor_id"`
	ExecutorName  string    `json:"executor_name,omitempty"`
	Message       string    `json:"message"`
	ProposedPrice *int64    `json:"proposed_price,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type OrderFilter struct {
	CategoryID string
	Priority   string
	Limit      int
	Offset     int
}

type CreateOrderRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	CategoryID  *string    `json:"category_id" validate:"omitempty,uuid"`
	Address     string     `json:"address" validate:"max=300"`
	Price       int64      `json:"price" validate:"gte=0"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	Deadline    *time.Time `json:"deadline"`
}

type UpdateOrderRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Address     *string    `json:"address" validate:"omitempty,max=300"`
	Price       *int64     `json:"price" validate:"omitempty,gte=0"`
	Deadline    *time.Time `json:"deadline"`
}

type PlaceBidRequest struct {
	Message       string `json:"message" validate:"required,max=2000"`
	ProposedPrice *int64 `json:"proposed_price" validate:"omitempty,gte=0"`
}

// AcceptResult is what the client gets back after accepting a bid.
type AcceptResult struct {
	Order          *Order `json:"order"`
	Bid            *Bid   `json:"bid"`
	RejectedBids   int    `json:"rejected_bids"`
	ConversationID string `json:"conversation_id,omitempty"`
}
