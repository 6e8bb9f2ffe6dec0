package user

import "time"

// PublicProfile is what any visitor can see about a user.
type PublicProfile struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Role            string    `json:"role"`
	Bio             string    `json:"bio,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	City            string    `json:"city,omitempty"`
	Rating          float64   `json:"rating"`
	CompletedOrders int       `json:"completed_orders"`
	ReviewCount     int       `json:"review_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// UpdateProfileRequest is a partial update: nil fields are left unchanged.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Bio       *string `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
	City      *string `json:"city" validate:"omitempty,max=120"`
}

func (r UpdateProfileRequest) empty() bool {
	return r.FullName == nil && r.Phone == nil && r.Bio == nil && r.AvatarURL == nil && r.City == nil
}
