// internal/domain/review.go
package domain

import (
	"time"
)

// Review is a single review owned by exactly one movie.
type Review struct {
	ID               int64      `json:"id" db:"id"`
	MovieID          int64      `json:"movie" db:"movie_id"`
	ReviewerName     string     `json:"reviewer_name" db:"reviewer_name"`
	Title            string     `json:"title" db:"title"`
	Rating           int        `json:"rating" db:"rating"` // 1..5
	Comment          string     `json:"comment" db:"comment"`
	HelpfulVotes     int        `json:"helpful_votes" db:"helpful_votes"`
	VerifiedPurchase bool       `json:"verified_purchase" db:"verified_purchase"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	EditedAt         *time.Time `json:"edited_at" db:"edited_at"`
}

// Fields returns the mutable part of the review.
func (r Review) Fields() ReviewFields {
	return ReviewFields{
		ReviewerName: r.ReviewerName,
		Title:        r.Title,
		Rating:       r.Rating,
		Comment:      r.Comment,
	}
}

// ReviewFields is the review authoring form and also the set of fields an
// edit may replace. A Rating of 0 means "not chosen yet".
type ReviewFields struct {
	ReviewerName string `json:"reviewer_name" validate:"notblank"`
	Title        string `json:"title" validate:"notblank"`
	Rating       int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      string `json:"comment" validate:"notblank"`
}

// AggregatedRating summarises the ratings of one movie.
type AggregatedRating struct {
	MovieID       int64   `json:"movie_id"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int64   `json:"rating_count"`
}
