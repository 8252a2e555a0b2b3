package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"movie-catalog/internal/domain"
)

// MockStore is an in-memory Store for development and tests. Values are
// copied on the way in and on the way out.
type MockStore struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	movies     map[int64]*domain.Movie // Genres hold ids only
	genres     map[int64]domain.Genre
	reviews    map[int64]*domain.Review
	nextMovie  int64
	nextGenre  int64
	nextReview int64
}

func NewMockStore(logger *slog.Logger) *MockStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockStore{
		logger:  logger,
		movies:  make(map[int64]*domain.Movie),
		genres:  make(map[int64]domain.Genre),
		reviews: make(map[int64]*domain.Review),
	}
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Genre, 0, len(m.genres))
	for _, g := range m.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) CreateGenre(ctx context.Context, genre *domain.Genre) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.genres {
		if g.Name == genre.Name {
			m.logger.WarnContext(ctx, "Duplicate genre name", slog.String("name", genre.Name))
			return ErrDuplicateGenre
		}
	}
	m.nextGenre++
	genre.ID = m.nextGenre
	m.genres[genre.ID] = *genre
	m.logger.DebugContext(ctx, "Genre created in mock store", slog.Int64("genreID", genre.ID))
	return nil
}

func (m *MockStore) ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Movie, 0, len(m.movies))
	for _, mv := range m.movies {
		if genreID != 0 && !mv.HasGenre(genreID) {
			continue
		}
		out = append(out, m.hydrate(mv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockStore) GetMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mv, ok := m.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	out := m.hydrate(mv)
	return &out, nil
}

func (m *MockStore) CreateMovie(ctx context.Context, movie *domain.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	genres, err := m.resolveGenres(movie.Genres)
	if err != nil {
		return err
	}
	m.nextMovie++
	movie.ID = m.nextMovie
	movie.CreatedAt = time.Now().UTC()
	movie.UpdatedAt = movie.CreatedAt
	movie.Genres = genres
	movie.Reviews = []domain.Review{}

	stored := *movie
	stored.Genres = append([]domain.Genre(nil), genres...)
	stored.Reviews = nil
	m.movies[movie.ID] = &stored
	m.logger.DebugContext(ctx, "Movie created in mock store", slog.Int64("movieID", movie.ID))
	return nil
}

func (m *MockStore) UpdateMovie(ctx context.Context, movie *domain.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.movies[movie.ID]
	if !ok {
		return ErrMovieNotFound
	}
	genres, err := m.resolveGenres(movie.Genres)
	if err != nil {
		return err
	}
	existing.Title = movie.Title
	existing.ReleaseDate = movie.ReleaseDate
	existing.Description = movie.Description
	existing.Image = movie.Image
	existing.Genres = append([]domain.Genre(nil), genres...)
	existing.UpdatedAt = time.Now().UTC()

	*movie = m.hydrate(existing)
	return nil
}

func (m *MockStore) DeleteMovie(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[id]; !ok {
		return ErrMovieNotFound
	}
	delete(m.movies, id)
	for rid, r := range m.reviews {
		if r.MovieID == id {
			delete(m.reviews, rid)
		}
	}
	return nil
}

func (m *MockStore) ListReviews(ctx context.Context, movieID int64) ([]domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reviewsFor(movieID), nil
}

func (m *MockStore) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	out := *r
	return &out, nil
}

func (m *MockStore) CreateReview(ctx context.Context, review *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[review.MovieID]; !ok {
		return ErrMovieNotFound
	}
	m.nextReview++
	review.ID = m.nextReview
	review.CreatedAt = time.Now().UTC()
	review.EditedAt = nil
	stored := *review
	m.reviews[review.ID] = &stored
	return nil
}

func (m *MockStore) UpdateReview(ctx context.Context, id int64, fields domain.ReviewFields) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	editedAt := time.Now().UTC()
	r.ReviewerName = fields.ReviewerName
	r.Title = fields.Title
	r.Rating = fields.Rating
	r.Comment = fields.Comment
	r.EditedAt = &editedAt
	out := *r
	return &out, nil
}

func (m *MockStore) DeleteReview(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *MockStore) MarkHelpful(ctx context.Context, id int64) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	r.HelpfulVotes++
	out := *r
	return &out, nil
}

// resolveGenres maps genre ids to stored genres, keeping the given order.
func (m *MockStore) resolveGenres(in []domain.Genre) ([]domain.Genre, error) {
	ids := uniqueIDs(in)
	out := make([]domain.Genre, 0, len(ids))
	for _, id := range ids {
		g, ok := m.genres[id]
		if !ok {
			return nil, fmt.Errorf("genre %d: %w", id, ErrGenreNotFound)
		}
		out = append(out, g)
	}
	return out, nil
}

// hydrate copies a stored movie and attaches current genre names and reviews.
func (m *MockStore) hydrate(stored *domain.Movie) domain.Movie {
	out := *stored
	out.Genres = make([]domain.Genre, 0, len(stored.Genres))
	for _, g := range stored.Genres {
		if current, ok := m.genres[g.ID]; ok {
			out.Genres = append(out.Genres, current)
		}
	}
	out.Reviews = m.reviewsFor(stored.ID)
	return out
}

func (m *MockStore) reviewsFor(movieID int64) []domain.Review {
	out := make([]domain.Review, 0)
	for _, r := range m.reviews {
		if movieID == 0 || r.MovieID == movieID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
