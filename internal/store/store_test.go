package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"movie-catalog/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runStoreContract exercises the behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("genres", func(t *testing.T) {
		s := newStore(t)
		drama := &domain.Genre{Name: "Drama"}
		if err := s.CreateGenre(ctx, drama); err != nil {
			t.Fatalf("CreateGenre: %v", err)
		}
		if drama.ID == 0 {
			t.Fatal("CreateGenre did not assign an id")
		}
		if err := s.CreateGenre(ctx, &domain.Genre{Name: "Drama"}); !errors.Is(err, ErrDuplicateGenre) {
			t.Fatalf("duplicate genre: got %v, want ErrDuplicateGenre", err)
		}
		genres, err := s.ListGenres(ctx)
		if err != nil || len(genres) != 1 || genres[0].Name != "Drama" {
			t.Fatalf("ListGenres = %v, %v", genres, err)
		}
	})

	t.Run("movies", func(t *testing.T) {
		s := newStore(t)
		scifi := &domain.Genre{Name: "Sci-Fi"}
		drama := &domain.Genre{Name: "Drama"}
		mustCreateGenre(t, s, scifi)
		mustCreateGenre(t, s, drama)

		dune := &domain.Movie{
			Title: "Dune", ReleaseDate: "2021-10-22", Description: "Spice", Image: "dune.jpg",
			Genres: []domain.Genre{{ID: drama.ID}, {ID: scifi.ID}},
		}
		if err := s.CreateMovie(ctx, dune); err != nil {
			t.Fatalf("CreateMovie: %v", err)
		}
		if dune.ID == 0 || len(dune.Genres) != 2 || dune.Genres[0].Name != "Drama" || dune.Reviews == nil {
			t.Fatalf("CreateMovie filled %+v", dune)
		}
		heat := &domain.Movie{
			Title: "Heat", ReleaseDate: "1995-12-15", Description: "Crime", Image: "heat.jpg",
			Genres: []domain.Genre{{ID: drama.ID}},
		}
		if err := s.CreateMovie(ctx, heat); err != nil {
			t.Fatalf("CreateMovie: %v", err)
		}

		all, err := s.ListMovies(ctx, 0)
		if err != nil {
			t.Fatalf("ListMovies: %v", err)
		}
		if len(all) != 2 || all[0].ID != heat.ID || all[1].ID != dune.ID {
			t.Fatalf("ListMovies order = %+v", all)
		}
		onlyScifi, err := s.ListMovies(ctx, scifi.ID)
		if err != nil || len(onlyScifi) != 1 || onlyScifi[0].ID != dune.ID {
			t.Fatalf("ListMovies(scifi) = %+v, %v", onlyScifi, err)
		}

		dune.Title = "Dune: Part One"
		dune.Genres = []domain.Genre{{ID: scifi.ID}}
		if err := s.UpdateMovie(ctx, dune); err != nil {
			t.Fatalf("UpdateMovie: %v", err)
		}
		got, err := s.GetMovie(ctx, dune.ID)
		if err != nil {
			t.Fatalf("GetMovie: %v", err)
		}
		if got.Title != "Dune: Part One" || len(got.Genres) != 1 || got.Genres[0].Name != "Sci-Fi" {
			t.Fatalf("GetMovie after update = %+v", got)
		}
		if got.ReleaseDate != "2021-10-22" {
			t.Errorf("ReleaseDate = %q", got.ReleaseDate)
		}

		bad := &domain.Movie{Title: "X", ReleaseDate: "2000-01-01", Description: "x", Image: "x", Genres: []domain.Genre{{ID: 999}}}
		if err := s.CreateMovie(ctx, bad); !errors.Is(err, ErrGenreNotFound) {
			t.Fatalf("CreateMovie unknown genre: got %v", err)
		}
		if err := s.UpdateMovie(ctx, &domain.Movie{ID: 999, Genres: []domain.Genre{{ID: scifi.ID}}}); !errors.Is(err, ErrMovieNotFound) {
			t.Fatalf("UpdateMovie missing: got %v", err)
		}
		if _, err := s.GetMovie(ctx, 999); !errors.Is(err, ErrMovieNotFound) {
			t.Fatalf("GetMovie missing: got %v", err)
		}
	})

	t.Run("reviews", func(t *testing.T) {
		s := newStore(t)
		g := &domain.Genre{Name: "Drama"}
		mustCreateGenre(t, s, g)
		movie := &domain.Movie{Title: "Heat", ReleaseDate: "1995-12-15", Description: "Crime", Image: "heat.jpg", Genres: []domain.Genre{{ID: g.ID}}}
		if err := s.CreateMovie(ctx, movie); err != nil {
			t.Fatalf("CreateMovie: %v", err)
		}

		first := &domain.Review{MovieID: movie.ID, ReviewerName: "Ann", Title: "Good", Rating: 4, Comment: "Tense"}
		second := &domain.Review{MovieID: movie.ID, ReviewerName: "Bob", Title: "Meh", Rating: 2, Comment: "Long", VerifiedPurchase: true}
		for _, r := range []*domain.Review{first, second} {
			if err := s.CreateReview(ctx, r); err != nil {
				t.Fatalf("CreateReview: %v", err)
			}
		}
		if first.ID == 0 || first.CreatedAt.IsZero() || first.EditedAt != nil {
			t.Fatalf("CreateReview filled %+v", first)
		}
		if err := s.CreateReview(ctx, &domain.Review{MovieID: 999, ReviewerName: "a", Title: "b", Rating: 1, Comment: "c"}); !errors.Is(err, ErrMovieNotFound) {
			t.Fatalf("CreateReview missing movie: got %v", err)
		}

		reviews, err := s.ListReviews(ctx, movie.ID)
		if err != nil || len(reviews) != 2 || reviews[0].ID != first.ID {
			t.Fatalf("ListReviews = %+v, %v", reviews, err)
		}
		if !reviews[1].VerifiedPurchase {
			t.Error("VerifiedPurchase not persisted")
		}

		updated, err := s.UpdateReview(ctx, first.ID, domain.ReviewFields{ReviewerName: "Ann", Title: "Great", Rating: 5, Comment: "Tense!"})
		if err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		if updated.Rating != 5 || updated.EditedAt == nil {
			t.Fatalf("UpdateReview = %+v", updated)
		}

		voted, err := s.MarkHelpful(ctx, second.ID)
		if err != nil || voted.HelpfulVotes != 1 {
			t.Fatalf("MarkHelpful = %+v, %v", voted, err)
		}

		got, err := s.GetMovie(ctx, movie.ID)
		if err != nil || len(got.Reviews) != 2 || got.Reviews[0].Rating != 5 {
			t.Fatalf("GetMovie reviews = %+v, %v", got, err)
		}

		if err := s.DeleteReview(ctx, second.ID); err != nil {
			t.Fatalf("DeleteReview: %v", err)
		}
		if err := s.DeleteReview(ctx, second.ID); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("DeleteReview twice: got %v", err)
		}
		if _, err := s.UpdateReview(ctx, second.ID, first.Fields()); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("UpdateReview missing: got %v", err)
		}
		if _, err := s.MarkHelpful(ctx, second.ID); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("MarkHelpful missing: got %v", err)
		}

		if err := s.DeleteMovie(ctx, movie.ID); err != nil {
			t.Fatalf("DeleteMovie: %v", err)
		}
		if _, err := s.GetReview(ctx, first.ID); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("review survived movie delete: %v", err)
		}
		if err := s.DeleteMovie(ctx, movie.ID); !errors.Is(err, ErrMovieNotFound) {
			t.Fatalf("DeleteMovie twice: got %v", err)
		}
		all, err := s.ListReviews(ctx, 0)
		if err != nil || len(all) != 0 {
			t.Fatalf("ListReviews(all) = %+v, %v", all, err)
		}
	})
}

func mustCreateGenre(t *testing.T, s Store, g *domain.Genre) {
	t.Helper()
	if err := s.CreateGenre(context.Background(), g); err != nil {
		t.Fatalf("CreateGenre(%s): %v", g.Name, err)
	}
}

func TestMockStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMockStore(discardLogger())
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := Open(context.Background(), "sqlite3", ":memory:", discardLogger())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		":memory:":                     ":memory:?_foreign_keys=on",
		"catalog.db?cache=shared":      "catalog.db?cache=shared&_foreign_keys=on",
		"catalog.db?_fk=1":             "catalog.db?_fk=1",
		"catalog.db?_foreign_keys=off": "catalog.db?_foreign_keys=off",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
