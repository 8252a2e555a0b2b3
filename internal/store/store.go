// internal/store/store.go
package store

import (
	"context"
	"errors"

	"movie-catalog/internal/domain"
)

var (
	ErrMovieNotFound  = errors.New("movie not found")
	ErrGenreNotFound  = errors.New("genre not found")
	ErrReviewNotFound = errors.New("review not found")
	ErrDuplicateGenre = errors.New("genre with this name already exists")
)

// MovieStore persists movies together with their genre links. Returned movies
// always carry non-nil Genres and Reviews; AverageRating is left to the caller.
type MovieStore interface {
	// ListMovies returns movies newest first. genreID 0 lists every movie.
	ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error)
	GetMovie(ctx context.Context, id int64) (*domain.Movie, error)
	// CreateMovie stores the movie; only the ids of movie.Genres are read.
	// On success movie.ID, timestamps and genre names are filled in.
	CreateMovie(ctx context.Context, movie *domain.Movie) error
	UpdateMovie(ctx context.Context, movie *domain.Movie) error
	// DeleteMovie removes the movie and its reviews.
	DeleteMovie(ctx context.Context, id int64) error
}

// GenreStore persists the flat genre list.
type GenreStore interface {
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	CreateGenre(ctx context.Context, genre *domain.Genre) error
}

// ReviewStore persists reviews. Reviews are listed in creation order.
type ReviewStore interface {
	// ListReviews returns the reviews of one movie, or all reviews for movieID 0.
	ListReviews(ctx context.Context, movieID int64) ([]domain.Review, error)
	GetReview(ctx context.Context, id int64) (*domain.Review, error)
	CreateReview(ctx context.Context, review *domain.Review) error
	// UpdateReview replaces the editable fields and stamps EditedAt.
	UpdateReview(ctx context.Context, id int64, fields domain.ReviewFields) (*domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
	MarkHelpful(ctx context.Context, id int64) (*domain.Review, error)
}

// Store is the full catalog persistence layer.
type Store interface {
	MovieStore
	GenreStore
	ReviewStore
	Close() error
}

func uniqueIDs(genres []domain.Genre) []int64 {
	seen := make(map[int64]bool, len(genres))
	ids := make([]int64, 0, len(genres))
	for _, g := range genres {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		ids = append(ids, g.ID)
	}
	return ids
}
