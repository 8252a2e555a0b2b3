// Package session keeps the client-side state of catalog views. A
// MovieSession owns one movie snapshot and changes it only after the catalog
// service has confirmed the write; a failed call leaves it untouched.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"movie-catalog/internal/clients"
	"movie-catalog/internal/domain"
	"movie-catalog/internal/rating"
	"movie-catalog/internal/validation"
)

// Catalog is the remote catalog service.
type Catalog interface {
	ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error)
	GetMovie(ctx context.Context, id int64) (domain.Movie, error)
	CreateMovie(ctx context.Context, in clients.MovieInput) (domain.Movie, error)
	UpdateMovie(ctx context.Context, id int64, in clients.MovieInput) (domain.Movie, error)
	DeleteMovie(ctx context.Context, id int64) error
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	CreateGenre(ctx context.Context, name string) (domain.Genre, error)
	AddReview(ctx context.Context, movieID int64, fields domain.ReviewFields) (domain.Review, error)
	UpdateReview(ctx context.Context, reviewID int64, fields domain.ReviewFields) (domain.Review, error)
	DeleteReview(ctx context.Context, reviewID int64) error
	MarkHelpful(ctx context.Context, reviewID int64) (domain.Review, error)
}

// MovieSession is the detail view of one movie. It is not safe for
// concurrent use.
type MovieSession struct {
	catalog Catalog
	logger  *slog.Logger
	movie   domain.Movie
}

// OpenMovie fetches the movie and starts a session on it.
func OpenMovie(ctx context.Context, catalog Catalog, id int64, logger *slog.Logger) (*MovieSession, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MovieSession{catalog: catalog, logger: logger, movie: domain.Movie{ID: id}}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Movie returns a copy of the current snapshot.
func (s *MovieSession) Movie() domain.Movie {
	m := s.movie
	m.Reviews = append([]domain.Review(nil), s.movie.Reviews...)
	m.Genres = append([]domain.Genre(nil), s.movie.Genres...)
	return m
}

// Refresh replaces the snapshot with the server's copy.
func (s *MovieSession) Refresh(ctx context.Context) error {
	movie, err := s.catalog.GetMovie(ctx, s.movie.ID)
	if err != nil {
		return fmt.Errorf("refresh movie %d: %w", s.movie.ID, err)
	}
	s.movie = rating.Recompute(movie)
	return nil
}

func (s *MovieSession) requireReview(reviewID int64) error {
	if s.movie.FindReview(reviewID) < 0 {
		return fmt.Errorf("review %d: %w", reviewID, rating.ErrReviewNotFound)
	}
	return nil
}

// AddReview posts a new review and appends the stored review to the snapshot.
func (s *MovieSession) AddReview(ctx context.Context, fields domain.ReviewFields) (domain.Review, error) {
	if err := validation.Review(fields); err != nil {
		return domain.Review{}, err
	}
	review, err := s.catalog.AddReview(ctx, s.movie.ID, fields)
	if err != nil {
		return domain.Review{}, err
	}
	movie, err := rating.AddReview(s.movie, review)
	if err != nil {
		return domain.Review{}, fmt.Errorf("apply added review: %w", err)
	}
	s.movie = movie
	s.logger.DebugContext(ctx, "Review added", slog.Int64("reviewID", review.ID), slog.Float64("average", movie.AverageRating))
	return review, nil
}

// EditReview updates a review and replaces it with the server's version.
func (s *MovieSession) EditReview(ctx context.Context, reviewID int64, fields domain.ReviewFields) (domain.Review, error) {
	if err := validation.Review(fields); err != nil {
		return domain.Review{}, err
	}
	if err := s.requireReview(reviewID); err != nil {
		return domain.Review{}, err
	}
	review, err := s.catalog.UpdateReview(ctx, reviewID, fields)
	if err != nil {
		return domain.Review{}, err
	}
	movie, err := rating.ReplaceReview(s.movie, review)
	if err != nil {
		return domain.Review{}, fmt.Errorf("apply edited review: %w", err)
	}
	s.movie = movie
	return review, nil
}

// DeleteReview removes a review.
func (s *MovieSession) DeleteReview(ctx context.Context, reviewID int64) error {
	if err := s.requireReview(reviewID); err != nil {
		return err
	}
	if err := s.catalog.DeleteReview(ctx, reviewID); err != nil {
		return err
	}
	movie, err := rating.DeleteReview(s.movie, reviewID)
	if err != nil {
		return fmt.Errorf("apply deleted review: %w", err)
	}
	s.movie = movie
	return nil
}

// MarkHelpful records a helpful vote for a review. The snapshot takes the
// vote count the server returns.
func (s *MovieSession) MarkHelpful(ctx context.Context, reviewID int64) error {
	if err := s.requireReview(reviewID); err != nil {
		return err
	}
	review, err := s.catalog.MarkHelpful(ctx, reviewID)
	if err != nil {
		return err
	}
	movie, err := rating.ReplaceReview(s.movie, review)
	if err != nil {
		return fmt.Errorf("apply helpful vote: %w", err)
	}
	s.movie = movie
	return nil
}

// UpdateMovie submits the movie form. image may be nil to keep the current
// poster.
func (s *MovieSession) UpdateMovie(ctx context.Context, in clients.MovieInput) error {
	in.Form.HasImage = s.movie.Image != ""
	if in.Image != nil {
		in.Form.Image = in.ImageName
	}
	if err := validation.Movie(in.Form); err != nil {
		return err
	}
	movie, err := s.catalog.UpdateMovie(ctx, s.movie.ID, in)
	if err != nil {
		return err
	}
	s.movie = rating.Recompute(movie)
	return nil
}

// DeleteMovie deletes the movie. The session must not be used afterwards.
func (s *MovieSession) DeleteMovie(ctx context.Context) error {
	return s.catalog.DeleteMovie(ctx, s.movie.ID)
}

// CreateMovie validates and submits a new movie.
func CreateMovie(ctx context.Context, catalog Catalog, in clients.MovieInput) (domain.Movie, error) {
	in.Form.HasImage = false
	if in.Image != nil {
		in.Form.Image = in.ImageName
	}
	if err := validation.Movie(in.Form); err != nil {
		return domain.Movie{}, err
	}
	movie, err := catalog.CreateMovie(ctx, in)
	if err != nil {
		return domain.Movie{}, err
	}
	return rating.Recompute(movie), nil
}

// CreateGenre validates and submits a new genre.
func CreateGenre(ctx context.Context, catalog Catalog, name string) (domain.Genre, error) {
	if err := validation.Genre(domain.GenreForm{Name: name}); err != nil {
		return domain.Genre{}, err
	}
	return catalog.CreateGenre(ctx, name)
}
