// internal/store/sql_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"movie-catalog/internal/domain"
)

const (
	movieColumns  = `id, title, release_date, description, image, created_at, updated_at`
	reviewColumns = `id, movie_id, reviewer_name, title, rating, comment, helpful_votes, verified_purchase, created_at, edited_at`
)

// SQLStore implements Store on PostgreSQL or SQLite. Queries are written with
// ? placeholders and rebound for the active driver.
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database, applies the schema and returns the store.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if driver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one connection: in-memory databases are per connection and
		// SQLite serialises writers anyway.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// NewSQLStore wraps an already connected database.
func NewSQLStore(db *sqlx.DB, logger *slog.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, logger: logger}, nil
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.db.DriverName()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "Schema migration failed", slog.String("error", err.Error()))
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "Database schema is up to date", slog.String("driver", s.db.DriverName()))
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "Rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// --- genres ---

func (s *SQLStore) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	genres := []domain.Genre{}
	if err := s.db.SelectContext(ctx, &genres, `SELECT id, name FROM genres ORDER BY id`); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list genres", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

func (s *SQLStore) CreateGenre(ctx context.Context, genre *domain.Genre) error {
	query := s.db.Rebind(`INSERT INTO genres (name) VALUES (?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, genre.Name).Scan(&genre.ID); err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "Genre already exists", slog.String("name", genre.Name))
			return ErrDuplicateGenre
		}
		s.logger.ErrorContext(ctx, "Failed to create genre", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create genre: %w", err)
	}
	s.logger.InfoContext(ctx, "Genre created", slog.Int64("genreID", genre.ID), slog.String("name", genre.Name))
	return nil
}

// --- movies ---

func (s *SQLStore) ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error) {
	movies := []domain.Movie{}
	var err error
	if genreID != 0 {
		query := s.db.Rebind(`SELECT ` + movieColumns + ` FROM movies m
			WHERE EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.genre_id = ?)
			ORDER BY m.id DESC`)
		err = s.db.SelectContext(ctx, &movies, query, genreID)
	} else {
		err = s.db.SelectContext(ctx, &movies, `SELECT `+movieColumns+` FROM movies ORDER BY id DESC`)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list movies", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	if err := s.attach(ctx, s.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func (s *SQLStore) GetMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	movie, err := s.getMovie(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	movies := []domain.Movie{*movie}
	if err := s.attach(ctx, s.db, movies); err != nil {
		return nil, err
	}
	return &movies[0], nil
}

func (s *SQLStore) getMovie(ctx context.Context, q sqlx.QueryerContext, id int64) (*domain.Movie, error) {
	var movie domain.Movie
	query := sqlx.Rebind(sqlx.BindType(s.db.DriverName()), `SELECT `+movieColumns+` FROM movies WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &movie, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Movie not found", slog.Int64("movieID", id))
			return nil, ErrMovieNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get movie", slog.Int64("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}
	return &movie, nil
}

func (s *SQLStore) CreateMovie(ctx context.Context, movie *domain.Movie) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		genres, err := s.resolveGenres(ctx, tx, movie.Genres)
		if err != nil {
			return err
		}
		movie.CreatedAt = time.Now().UTC()
		movie.UpdatedAt = movie.CreatedAt
		query := tx.Rebind(`INSERT INTO movies (title, release_date, description, image, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
		if err := tx.QueryRowxContext(ctx, query,
			movie.Title, movie.ReleaseDate, movie.Description, movie.Image,
			movie.CreatedAt, movie.UpdatedAt,
		).Scan(&movie.ID); err != nil {
			return fmt.Errorf("failed to insert movie: %w", err)
		}
		if err := s.linkGenres(ctx, tx, movie.ID, genres); err != nil {
			return err
		}
		movie.Genres = genres
		movie.Reviews = []domain.Review{}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create movie", slog.String("title", movie.Title), slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "Movie created", slog.Int64("movieID", movie.ID))
	return nil
}

func (s *SQLStore) UpdateMovie(ctx context.Context, movie *domain.Movie) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		genres, err := s.resolveGenres(ctx, tx, movie.Genres)
		if err != nil {
			return err
		}
		movie.UpdatedAt = time.Now().UTC()
		query := tx.Rebind(`UPDATE movies SET title = ?, release_date = ?, description = ?, image = ?, updated_at = ? WHERE id = ?`)
		res, err := tx.ExecContext(ctx, query,
			movie.Title, movie.ReleaseDate, movie.Description, movie.Image, movie.UpdatedAt, movie.ID)
		if err != nil {
			return fmt.Errorf("failed to update movie: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check movie update result: %w", err)
		} else if n == 0 {
			return ErrMovieNotFound
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM movie_genres WHERE movie_id = ?`), movie.ID); err != nil {
			return fmt.Errorf("failed to unlink genres: %w", err)
		}
		return s.linkGenres(ctx, tx, movie.ID, genres)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to update movie", slog.Int64("movieID", movie.ID), slog.String("error", err.Error()))
		return err
	}
	updated, err := s.GetMovie(ctx, movie.ID)
	if err != nil {
		return err
	}
	*movie = *updated
	s.logger.InfoContext(ctx, "Movie updated", slog.Int64("movieID", movie.ID))
	return nil
}

func (s *SQLStore) DeleteMovie(ctx context.Context, id int64) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM reviews WHERE movie_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete reviews: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM movie_genres WHERE movie_id = ?`), id); err != nil {
			return fmt.Errorf("failed to unlink genres: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM movies WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete movie: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check movie delete result: %w", err)
		} else if n == 0 {
			return ErrMovieNotFound
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to delete movie", slog.Int64("movieID", id), slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "Movie deleted", slog.Int64("movieID", id))
	return nil
}

// resolveGenres loads the referenced genres, keeping the requested order.
func (s *SQLStore) resolveGenres(ctx context.Context, tx *sqlx.Tx, in []domain.Genre) ([]domain.Genre, error) {
	ids := uniqueIDs(in)
	if len(ids) == 0 {
		return []domain.Genre{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name FROM genres WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build genre query: %w", err)
	}
	var found []domain.Genre
	if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load genres: %w", err)
	}
	byID := make(map[int64]domain.Genre, len(found))
	for _, g := range found {
		byID[g.ID] = g
	}
	out := make([]domain.Genre, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("genre %d: %w", id, ErrGenreNotFound)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *SQLStore) linkGenres(ctx context.Context, tx *sqlx.Tx, movieID int64, genres []domain.Genre) error {
	query := tx.Rebind(`INSERT INTO movie_genres (movie_id, genre_id, position) VALUES (?, ?, ?)`)
	for i, g := range genres {
		if _, err := tx.ExecContext(ctx, query, movieID, g.ID, i); err != nil {
			return fmt.Errorf("failed to link genre %d: %w", g.ID, err)
		}
	}
	return nil
}

type movieGenreRow struct {
	MovieID int64  `db:"movie_id"`
	ID      int64  `db:"id"`
	Name    string `db:"name"`
}

// attach loads genres and reviews for the movies in two queries.
func (s *SQLStore) attach(ctx context.Context, q sqlx.QueryerContext, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	ids := make([]int64, len(movies))
	index := make(map[int64]int, len(movies))
	for i := range movies {
		ids[i] = movies[i].ID
		index[movies[i].ID] = i
		movies[i].Genres = []domain.Genre{}
		movies[i].Reviews = []domain.Review{}
	}
	bind := sqlx.BindType(s.db.DriverName())

	query, args, err := sqlx.In(`SELECT mg.movie_id, g.id, g.name FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (?) ORDER BY mg.movie_id, mg.position`, ids)
	if err != nil {
		return fmt.Errorf("failed to build genre query: %w", err)
	}
	var links []movieGenreRow
	if err := sqlx.SelectContext(ctx, q, &links, sqlx.Rebind(bind, query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load movie genres", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load movie genres: %w", err)
	}
	for _, l := range links {
		i := index[l.MovieID]
		movies[i].Genres = append(movies[i].Genres, domain.Genre{ID: l.ID, Name: l.Name})
	}

	query, args, err = sqlx.In(`SELECT `+reviewColumns+` FROM reviews WHERE movie_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build review query: %w", err)
	}
	var reviews []domain.Review
	if err := sqlx.SelectContext(ctx, q, &reviews, sqlx.Rebind(bind, query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load movie reviews", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load movie reviews: %w", err)
	}
	for _, r := range reviews {
		i := index[r.MovieID]
		movies[i].Reviews = append(movies[i].Reviews, r)
	}
	return nil
}

// --- reviews ---

func (s *SQLStore) ListReviews(ctx context.Context, movieID int64) ([]domain.Review, error) {
	reviews := []domain.Review{}
	var err error
	if movieID != 0 {
		err = s.db.SelectContext(ctx, &reviews,
			s.db.Rebind(`SELECT `+reviewColumns+` FROM reviews WHERE movie_id = ? ORDER BY id`), movieID)
	} else {
		err = s.db.SelectContext(ctx, &reviews, `SELECT `+reviewColumns+` FROM reviews ORDER BY id`)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list reviews", slog.Int64("movieID", movieID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *SQLStore) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	var review domain.Review
	err := s.db.GetContext(ctx, &review, s.db.Rebind(`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Review not found", slog.Int64("reviewID", id))
			return nil, ErrReviewNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get review", slog.Int64("reviewID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get review %d: %w", id, err)
	}
	return &review, nil
}

func (s *SQLStore) CreateReview(ctx context.Context, review *domain.Review) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.getMovie(ctx, tx, review.MovieID); err != nil {
			return err
		}
		review.CreatedAt = time.Now().UTC()
		review.EditedAt = nil
		query := tx.Rebind(`INSERT INTO reviews (movie_id, reviewer_name, title, rating, comment, helpful_votes, verified_purchase, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		return tx.QueryRowxContext(ctx, query,
			review.MovieID, review.ReviewerName, review.Title, review.Rating, review.Comment,
			review.HelpfulVotes, review.VerifiedPurchase, review.CreatedAt,
		).Scan(&review.ID)
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return err
		}
		s.logger.ErrorContext(ctx, "Failed to create review", slog.Int64("movieID", review.MovieID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to create review: %w", err)
	}
	s.logger.InfoContext(ctx, "Review created", slog.Int64("reviewID", review.ID), slog.Int64("movieID", review.MovieID))
	return nil
}

func (s *SQLStore) UpdateReview(ctx context.Context, id int64, fields domain.ReviewFields) (*domain.Review, error) {
	editedAt := time.Now().UTC()
	query := s.db.Rebind(`UPDATE reviews SET reviewer_name = ?, title = ?, rating = ?, comment = ?, edited_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, fields.ReviewerName, fields.Title, fields.Rating, fields.Comment, editedAt, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update review", slog.Int64("reviewID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	if err := expectRow(res, ErrReviewNotFound); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Review updated", slog.Int64("reviewID", id))
	return s.GetReview(ctx, id)
}

func (s *SQLStore) DeleteReview(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reviews WHERE id = ?`), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete review", slog.Int64("reviewID", id), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if err := expectRow(res, ErrReviewNotFound); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Review deleted", slog.Int64("reviewID", id))
	return nil
}

func (s *SQLStore) MarkHelpful(ctx context.Context, id int64) (*domain.Review, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE reviews SET helpful_votes = helpful_votes + 1 WHERE id = ?`), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record helpful vote", slog.Int64("reviewID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to record helpful vote: %w", err)
	}
	if err := expectRow(res, ErrReviewNotFound); err != nil {
		return nil, err
	}
	return s.GetReview(ctx, id)
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
