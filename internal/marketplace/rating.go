package marketplace

import "math"

const (
	bonusPointWeight = 0.1
	maxRating        = 5.0
)

// RatingInput is one visible review as the rating rule sees it.
type RatingInput struct {
	Stars       int
	BonusPoints int
}

// ComputeRating derives an executor's rating from their visible reviews:
// the star average plus a tenth of a point per admin bonus point, clamped
// to [0, 5] and rounded to two decimals. No reviews means a rating of 0.
func ComputeRating(reviews []RatingInput) float64 {
	if len(reviews) == 0 {
		return 0
	}

	var stars, bonus int
	for _, r := range reviews {
		stars += r.Stars
		bonus += r.BonusPoints
	}

	rating := float64(stars)/float64(len(reviews)) + bonusPointWeight*float64(bonus)
	rating = math.Max(0, math.Min(maxRating, rating))
	return math.Round(rating*100) / 100
}
