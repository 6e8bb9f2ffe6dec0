package auth

import "time"

type User struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Role            string    `json:"role"`
	IsActive        bool      `json:"is_active"`
	PasswordHash    string    `json:"-"`
	Rating          float64   `json:"rating"`
	CompletedOrders int       `json:"completed_orders"`
	CreatedAt       time.Time `json:"created_at"`
}

// Me is the authenticated user's own view, including the wallet.
type Me struct {
	User
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
	City      string `json:"city"`
	Balance   int64  `json:"balance"`
	Held      int64  `json:"held"`
}

type SignupRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=32"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=client executor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type BootstrapAdminRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
