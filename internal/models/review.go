package models

import "time"

// Review is an immutable one-per-booking rating of a technician.
type Review struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	RaterID   string    `json:"rater_id"`
	RatedID   string    `json:"rated_id"`
	Rating    int       `json:"rating"` // 1..5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// FoldRating folds a new score into a running average.
// jobsCompleted is the number of scores already folded in.
func FoldRating(oldRating float64, jobsCompleted int64, score int) float64 {
	return (oldRating*float64(jobsCompleted) + float64(score)) / float64(jobsCompleted+1)
}
