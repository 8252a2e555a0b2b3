// Package rating keeps the review list of a movie snapshot and its derived
// average rating consistent. Every function takes a movie by value and returns
// a new one; the caller's review slice is never written to.
package rating

import (
	"errors"
	"fmt"
	"time"

	"movie-catalog/internal/domain"
	"movie-catalog/internal/validation"
)

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrDuplicateReview = errors.New("review already exists")
)

var now = time.Now

// Average is the arithmetic mean of the ratings, 0 for no reviews.
func Average(reviews []domain.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// Recompute returns movie with AverageRating derived from its reviews.
func Recompute(movie domain.Movie) domain.Movie {
	movie.AverageRating = Average(movie.Reviews)
	return movie
}

// Summary returns the aggregated rating of the movie.
func Summary(movie domain.Movie) domain.AggregatedRating {
	return domain.AggregatedRating{
		MovieID:       movie.ID,
		AverageRating: Average(movie.Reviews),
		RatingCount:   int64(len(movie.Reviews)),
	}
}

// AddReview appends review to the movie.
func AddReview(movie domain.Movie, review domain.Review) (domain.Movie, error) {
	if err := validation.Review(review.Fields()); err != nil {
		return movie, err
	}
	if movie.FindReview(review.ID) >= 0 {
		return movie, fmt.Errorf("review %d: %w", review.ID, ErrDuplicateReview)
	}
	reviews := make([]domain.Review, 0, len(movie.Reviews)+1)
	reviews = append(reviews, movie.Reviews...)
	reviews = append(reviews, review)
	movie.Reviews = reviews
	return Recompute(movie), nil
}

// EditReview replaces the editable fields of one review and stamps EditedAt.
func EditReview(movie domain.Movie, reviewID int64, fields domain.ReviewFields) (domain.Movie, error) {
	if err := validation.Review(fields); err != nil {
		return movie, err
	}
	i := movie.FindReview(reviewID)
	if i < 0 {
		return movie, fmt.Errorf("review %d: %w", reviewID, ErrReviewNotFound)
	}
	reviews := cloneReviews(movie.Reviews)
	editedAt := now().UTC()
	r := &reviews[i]
	r.ReviewerName = fields.ReviewerName
	r.Title = fields.Title
	r.Rating = fields.Rating
	r.Comment = fields.Comment
	r.EditedAt = &editedAt
	movie.Reviews = reviews
	return Recompute(movie), nil
}

// ReplaceReview swaps in a review as returned by the server, keeping its
// position in the list.
func ReplaceReview(movie domain.Movie, review domain.Review) (domain.Movie, error) {
	if err := validation.Review(review.Fields()); err != nil {
		return movie, err
	}
	i := movie.FindReview(review.ID)
	if i < 0 {
		return movie, fmt.Errorf("review %d: %w", review.ID, ErrReviewNotFound)
	}
	reviews := cloneReviews(movie.Reviews)
	reviews[i] = review
	movie.Reviews = reviews
	return Recompute(movie), nil
}

// DeleteReview removes one review.
func DeleteReview(movie domain.Movie, reviewID int64) (domain.Movie, error) {
	i := movie.FindReview(reviewID)
	if i < 0 {
		return movie, fmt.Errorf("review %d: %w", reviewID, ErrReviewNotFound)
	}
	reviews := make([]domain.Review, 0, len(movie.Reviews)-1)
	reviews = append(reviews, movie.Reviews[:i]...)
	reviews = append(reviews, movie.Reviews[i+1:]...)
	movie.Reviews = reviews
	return Recompute(movie), nil
}

// RecordHelpfulVote increments the helpful counter of one review.
func RecordHelpfulVote(movie domain.Movie, reviewID int64) (domain.Movie, error) {
	i := movie.FindReview(reviewID)
	if i < 0 {
		return movie, fmt.Errorf("review %d: %w", reviewID, ErrReviewNotFound)
	}
	reviews := cloneReviews(movie.Reviews)
	reviews[i].HelpfulVotes++
	movie.Reviews = reviews
	return movie, nil
}

func cloneReviews(in []domain.Review) []domain.Review {
	out := make([]domain.Review, len(in))
	copy(out, in)
	return out
}
