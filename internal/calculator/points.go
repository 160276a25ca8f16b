package calculator

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// PointsForSettlement scores how promptly a settlement was paid.
// diffDays = ceil((paidAt - createdAt) / 1 day); <= 1 day earns 10, <= 3 days
// earns 5, anything later earns 2.
func PointsForSettlement(createdAt, paidAt time.Time) int {
	diffDays := math.Ceil(float64(paidAt.Sub(createdAt)) / float64(day))

	switch {
	case diffDays <= 1:
		return 10
	case diffDays <= 3:
		return 5
	default:
		return 2
	}
}

// DampedScore folds a newly earned award into a user's running score.
// A user with no score takes the award as is; otherwise the score becomes the
// floored mean of the old score and the award.
func DampedScore(prev, earned int) int {
	if prev == 0 {
		return earned
	}
	return int(math.Floor(float64(prev+earned) / 2))
}
