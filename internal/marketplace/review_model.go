package marketplace

import "time"

// Review represents a rating and review given by a client for a completed order
type Review struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	ReviewerID       string     `json:"reviewer_id"`
	ReviewerName     string     `json:"reviewer_name,omitempty"`
	ExecutorID       string     `json:"executor_id"`
	Rating           int        `json:"rating"`
	Comment          string     `json:"comment"`
	AdminBonusPoints int        `json:"admin_bonus_points"`
	IsVisible        bool       `json:"is_visible"`
	IsModerated      bool       `json:"is_moderated"`
	ModerationNote   string     `json:"moderation_note,omitempty"`
	ModeratedBy      *string    `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time `json:"moderated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RatingSummary represents aggregated rating data for an executor
type RatingSummary struct {
	ExecutorID   string  `json:"executor_id"`
	ExecutorName string  `json:"executor_name"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
	AverageStars float64 `json:"average_stars"`
	RatingCounts struct {
		FiveStar  int `json:"five_star"`
		FourStar  int `json:"four_star"`
		ThreeStar int `json:"three_star"`
		TwoStar   int `json:"two_star"`
		OneStar   int `json:"one_star"`
	} `json:"rating_counts"`
}

// AddStars bumps the breakdown bucket for a star value.
func (s *RatingSummary) AddStars(stars, count int) {
	switch stars {
	case 5:
		s.RatingCounts.FiveStar += count
	case 4:
		s.RatingCounts.FourStar += count
	case 3:
		s.RatingCounts.ThreeStar += count
	case 2:
		s.RatingCounts.TwoStar += count
	case 1:
		s.RatingCounts.OneStar += count
	}
}

// CreateReviewRequest represents the request payload for creating a review
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// ModerateReviewRequest is the admin's verdict on a review.
type ModerateReviewRequest struct {
	IsVisible        *bool  `json:"is_visible"`
	AdminBonusPoints *int   `json:"admin_bonus_points" validate:"omitempty,min=-50,max=50"`
	Note             string `json:"note" validate:"max=1000"`
}
