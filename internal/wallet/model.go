package wallet

import "time"

const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypePayment    = "payment"
	TypeAdjustment = "adjustment"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Wallet holds a user's GT Coin. Held is money reserved by pending
// withdrawals; it is no longer spendable but not yet paid out.
type Wallet struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	Held      int64     `json:"held"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Transaction struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	UserName      string     `json:"user_name,omitempty"`
	Amount        int64      `json:"amount"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	ProofURL      string     `json:"proof_url,omitempty"`
	Details       string     `json:"details,omitempty"`
	AdminNote     string     `json:"admin_note,omitempty"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type TxFilter struct {
	UserID string
	Status string
	Type   string
	Limit  int
	Offset int
}

// DepositRequest is a top-up claim backed by a screenshot of the transfer.
type DepositRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
	ProofURL      string `json:"proof_url" validate:"required,url"`
}

type WithdrawRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
	Details       string `json:"details" validate:"required,max=500"`
}

type ReviewRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// AdjustRequest is a manual balance correction; Amount may be negative.
type AdjustRequest struct {
	Amount int64  `json:"amount" validate:"required,ne=0"`
	Note   string `json:"note" validate:"required,max=500"`
}
