package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"movie-catalog/internal/clients"
	"movie-catalog/internal/domain"
	"movie-catalog/internal/rating"
	"movie-catalog/internal/validation"
)

var errBackendDown = &clients.RemoteError{Op: "test", StatusCode: 503, Message: "backend down"}

// fakeCatalog serves one movie and records every remote call.
type fakeCatalog struct {
	movies  []domain.Movie
	genres  []domain.Genre
	nextID  int64
	fail    error
	calls   []string
	created clients.MovieInput
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		nextID: 100,
		genres: []domain.Genre{{ID: 1, Name: "Sci-Fi"}, {ID: 2, Name: "Drama"}},
		movies: []domain.Movie{
			{
				ID: 7, Title: "Dune", ReleaseDate: "2021-10-22", Description: "Desert planet",
				Genres: []domain.Genre{{ID: 1, Name: "Sci-Fi"}},
				Reviews: []domain.Review{
					{ID: 1, MovieID: 7, ReviewerName: "Ann", Title: "Great", Rating: 4, Comment: "Loved it"},
					{ID: 2, MovieID: 7, ReviewerName: "Bob", Title: "Meh", Rating: 2, Comment: "Too long"},
				},
			},
			{
				ID: 8, Title: "Amélie", ReleaseDate: "2001-04-25", Description: "Paris",
				Genres: []domain.Genre{{ID: 2, Name: "Drama"}},
			},
		},
	}
}

func (f *fakeCatalog) record(call string) error {
	f.calls = append(f.calls, call)
	return f.fail
}

func (f *fakeCatalog) find(id int64) int {
	for i := range f.movies {
		if f.movies[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeCatalog) ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error) {
	if err := f.record("ListMovies"); err != nil {
		return nil, err
	}
	var out []domain.Movie
	for _, m := range f.movies {
		if genreID == 0 || m.HasGenre(genreID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetMovie(ctx context.Context, id int64) (domain.Movie, error) {
	if err := f.record("GetMovie"); err != nil {
		return domain.Movie{}, err
	}
	i := f.find(id)
	if i < 0 {
		return domain.Movie{}, clients.ErrNotFound
	}
	m := f.movies[i]
	m.Reviews = append([]domain.Review(nil), m.Reviews...)
	return m, nil
}

func (f *fakeCatalog) CreateMovie(ctx context.Context, in clients.MovieInput) (domain.Movie, error) {
	if err := f.record("CreateMovie"); err != nil {
		return domain.Movie{}, err
	}
	f.created = in
	f.nextID++
	m := domain.Movie{ID: f.nextID, Title: in.Form.Title, Image: "/media/poster.png"}
	f.movies = append(f.movies, m)
	return m, nil
}

func (f *fakeCatalog) UpdateMovie(ctx context.Context, id int64, in clients.MovieInput) (domain.Movie, error) {
	if err := f.record("UpdateMovie"); err != nil {
		return domain.Movie{}, err
	}
	i := f.find(id)
	f.movies[i].Title = in.Form.Title
	f.movies[i].Description = in.Form.Description
	return f.movies[i], nil
}

func (f *fakeCatalog) DeleteMovie(ctx context.Context, id int64) error {
	return f.record("DeleteMovie")
}

func (f *fakeCatalog) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	if err := f.record("ListGenres"); err != nil {
		return nil, err
	}
	return f.genres, nil
}

func (f *fakeCatalog) CreateGenre(ctx context.Context, name string) (domain.Genre, error) {
	if err := f.record("CreateGenre"); err != nil {
		return domain.Genre{}, err
	}
	f.nextID++
	return domain.Genre{ID: f.nextID, Name: name}, nil
}

func (f *fakeCatalog) AddReview(ctx context.Context, movieID int64, fields domain.ReviewFields) (domain.Review, error) {
	if err := f.record("AddReview"); err != nil {
		return domain.Review{}, err
	}
	f.nextID++
	r := domain.Review{
		ID: f.nextID, MovieID: movieID, ReviewerName: fields.ReviewerName, Title: fields.Title,
		Rating: fields.Rating, Comment: fields.Comment, CreatedAt: time.Now().UTC(),
	}
	i := f.find(movieID)
	f.movies[i].Reviews = append(f.movies[i].Reviews, r)
	return r, nil
}

func (f *fakeCatalog) UpdateReview(ctx context.Context, reviewID int64, fields domain.ReviewFields) (domain.Review, error) {
	if err := f.record("UpdateReview"); err != nil {
		return domain.Review{}, err
	}
	edited := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range f.movies {
		if j := f.movies[i].FindReview(reviewID); j >= 0 {
			r := &f.movies[i].Reviews[j]
			r.ReviewerName, r.Title, r.Rating, r.Comment = fields.ReviewerName, fields.Title, fields.Rating, fields.Comment
			r.EditedAt = &edited
			return *r, nil
		}
	}
	return domain.Review{}, clients.ErrNotFound
}

func (f *fakeCatalog) DeleteReview(ctx context.Context, reviewID int64) error {
	return f.record("DeleteReview")
}

func (f *fakeCatalog) MarkHelpful(ctx context.Context, reviewID int64) (domain.Review, error) {
	if err := f.record("MarkHelpful"); err != nil {
		return domain.Review{}, err
	}
	for i := range f.movies {
		if j := f.movies[i].FindReview(reviewID); j >= 0 {
			f.movies[i].Reviews[j].HelpfulVotes++
			return f.movies[i].Reviews[j], nil
		}
	}
	return domain.Review{}, clients.ErrNotFound
}

func openDune(t *testing.T, cat *fakeCatalog) *MovieSession {
	t.Helper()
	s, err := OpenMovie(context.Background(), cat, 7, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenMovie: %v", err)
	}
	cat.calls = nil
	return s
}

var goodReview = domain.ReviewFields{ReviewerName: "Cat", Title: "Solid", Rating: 3, Comment: "Worth it"}

func TestOpenMovieRecomputesAverage(t *testing.T) {
	s := openDune(t, newFakeCatalog())
	if got := s.Movie().AverageRating; got != 3 {
		t.Errorf("AverageRating = %v, want 3", got)
	}
}

func TestOpenMovieNotFound(t *testing.T) {
	_, err := OpenMovie(context.Background(), newFakeCatalog(), 99, nil)
	if !errors.Is(err, clients.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReviewLifecycle(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	ctx := context.Background()

	added, err := s.AddReview(ctx, goodReview)
	if err != nil {
		t.Fatalf("AddReview: %v", err)
	}
	if got := s.Movie().AverageRating; got != 3 {
		t.Errorf("after add AverageRating = %v, want 3", got)
	}
	if n := len(s.Movie().Reviews); n != 3 {
		t.Fatalf("reviews = %d, want 3", n)
	}

	edit := goodReview
	edit.Rating = 5
	edited, err := s.EditReview(ctx, added.ID, edit)
	if err != nil {
		t.Fatalf("EditReview: %v", err)
	}
	if edited.EditedAt == nil {
		t.Error("edited review has no edited_at")
	}
	m := s.Movie()
	if got, want := m.AverageRating, 11.0/3; got != want {
		t.Errorf("after edit AverageRating = %v, want %v", got, want)
	}
	if r := m.Reviews[m.FindReview(added.ID)]; r.EditedAt == nil || !r.EditedAt.Equal(*edited.EditedAt) {
		t.Errorf("snapshot edited_at = %v, want server value %v", r.EditedAt, edited.EditedAt)
	}

	if err := s.MarkHelpful(ctx, 1); err != nil {
		t.Fatalf("MarkHelpful: %v", err)
	}
	m = s.Movie()
	if got := m.Reviews[0].HelpfulVotes; got != 1 {
		t.Errorf("HelpfulVotes = %d, want 1", got)
	}

	for _, id := range []int64{1, 2, added.ID} {
		if err := s.DeleteReview(ctx, id); err != nil {
			t.Fatalf("DeleteReview(%d): %v", id, err)
		}
	}
	m = s.Movie()
	if len(m.Reviews) != 0 || m.AverageRating != 0 {
		t.Errorf("after deleting all: reviews=%d average=%v, want 0 and 0", len(m.Reviews), m.AverageRating)
	}

	want := []string{"AddReview", "UpdateReview", "MarkHelpful", "DeleteReview", "DeleteReview", "DeleteReview"}
	if strings.Join(cat.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", cat.calls, want)
	}
}

func TestInvalidReviewMakesNoRemoteCall(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	before := s.Movie()

	bad := goodReview
	bad.Rating = 0
	bad.Comment = "   "
	_, err := s.AddReview(context.Background(), bad)
	verr, ok := validation.AsError(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := verr.Field("rating"); got != "Please select a rating" {
		t.Errorf("rating message = %q", got)
	}
	if got := verr.Field("comment"); got != "Please add a comment" {
		t.Errorf("comment message = %q", got)
	}

	if _, err := s.EditReview(context.Background(), 1, bad); err == nil {
		t.Error("EditReview accepted an invalid form")
	}
	if len(cat.calls) != 0 {
		t.Errorf("remote calls = %v, want none", cat.calls)
	}
	if s.Movie().AverageRating != before.AverageRating || len(s.Movie().Reviews) != len(before.Reviews) {
		t.Error("snapshot changed after validation failure")
	}
}

func TestUnknownReviewMakesNoRemoteCall(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	ctx := context.Background()

	checks := map[string]func() error{
		"edit": func() error {
			_, err := s.EditReview(ctx, 42, goodReview)
			return err
		},
		"delete":  func() error { return s.DeleteReview(ctx, 42) },
		"helpful": func() error { return s.MarkHelpful(ctx, 42) },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, rating.ErrReviewNotFound) {
				t.Errorf("err = %v, want ErrReviewNotFound", err)
			}
		})
	}
	if len(cat.calls) != 0 {
		t.Errorf("remote calls = %v, want none", cat.calls)
	}
}

func TestRemoteFailureLeavesSnapshot(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	ctx := context.Background()
	before := s.Movie()
	cat.fail = errBackendDown

	if _, err := s.AddReview(ctx, goodReview); !errors.Is(err, errBackendDown) {
		t.Errorf("AddReview err = %v", err)
	}
	if _, err := s.EditReview(ctx, 1, goodReview); !errors.Is(err, errBackendDown) {
		t.Errorf("EditReview err = %v", err)
	}
	if err := s.DeleteReview(ctx, 1); !errors.Is(err, errBackendDown) {
		t.Errorf("DeleteReview err = %v", err)
	}
	if err := s.MarkHelpful(ctx, 1); !errors.Is(err, errBackendDown) {
		t.Errorf("MarkHelpful err = %v", err)
	}
	if err := s.Refresh(ctx); !errors.Is(err, errBackendDown) {
		t.Errorf("Refresh err = %v", err)
	}

	after := s.Movie()
	if after.AverageRating != before.AverageRating || len(after.Reviews) != len(before.Reviews) {
		t.Fatalf("snapshot changed: before %+v after %+v", before, after)
	}
	for i := range before.Reviews {
		if after.Reviews[i] != before.Reviews[i] {
			t.Errorf("review %d changed: %+v -> %+v", i, before.Reviews[i], after.Reviews[i])
		}
	}
}

func TestMovieReturnsCopy(t *testing.T) {
	s := openDune(t, newFakeCatalog())
	m := s.Movie()
	m.Reviews[0].Rating = 1
	if s.Movie().Reviews[0].Rating != 4 {
		t.Error("mutating the returned movie changed the snapshot")
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	cat.movies[0].Reviews = cat.movies[0].Reviews[:1]
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := s.Movie().AverageRating; got != 4 {
		t.Errorf("AverageRating = %v, want 4", got)
	}
}

func TestUpdateMovie(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)
	ctx := context.Background()

	form := domain.MovieForm{Title: "Dune: Part One", ReleaseDate: "2021-10-22", Description: "Desert planet", Genres: []int64{1}}
	if err := s.UpdateMovie(ctx, clients.MovieInput{Form: form}); err == nil {
		t.Fatal("UpdateMovie without an image on a movie with no poster succeeded")
	}
	if len(cat.calls) != 0 {
		t.Fatalf("remote calls = %v, want none", cat.calls)
	}

	in := clients.MovieInput{Form: form, ImageName: "dune.png", Image: strings.NewReader("png")}
	if err := s.UpdateMovie(ctx, in); err != nil {
		t.Fatalf("UpdateMovie: %v", err)
	}
	m := s.Movie()
	if m.Title != "Dune: Part One" || m.AverageRating != 3 {
		t.Errorf("snapshot = %q avg %v", m.Title, m.AverageRating)
	}
}

func TestCreateMovieValidates(t *testing.T) {
	cat := newFakeCatalog()
	ctx := context.Background()

	_, err := CreateMovie(ctx, cat, clients.MovieInput{Form: domain.MovieForm{Title: "Alien"}})
	verr, ok := validation.AsError(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	for field, want := range map[string]string{
		"release_date": "Release date is required",
		"description":  "Description is required",
		"image":        "Image is required",
		"genres":       "Select at least one genre",
	} {
		if got := verr.Field(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
	if len(cat.calls) != 0 {
		t.Fatalf("remote calls = %v, want none", cat.calls)
	}

	in := clients.MovieInput{
		Form:      domain.MovieForm{Title: "Alien", ReleaseDate: "1979-05-25", Description: "In space", Genres: []int64{1}},
		ImageName: "alien.jpg",
		Image:     strings.NewReader("jpg"),
	}
	m, err := CreateMovie(ctx, cat, in)
	if err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	if m.Title != "Alien" || cat.created.Form.Image != "alien.jpg" {
		t.Errorf("created %+v with form %+v", m, cat.created.Form)
	}
}

func TestCreateGenreValidates(t *testing.T) {
	cat := newFakeCatalog()
	if _, err := CreateGenre(context.Background(), cat, "  "); err == nil {
		t.Fatal("blank genre accepted")
	}
	if len(cat.calls) != 0 {
		t.Fatalf("remote calls = %v, want none", cat.calls)
	}
	g, err := CreateGenre(context.Background(), cat, "Horror")
	if err != nil || g.Name != "Horror" {
		t.Fatalf("CreateGenre = %+v, %v", g, err)
	}
}

func TestMarkHelpfulTakesServerCount(t *testing.T) {
	cat := newFakeCatalog()
	s := openDune(t, cat)

	// Other users voted since the snapshot was fetched.
	cat.movies[0].Reviews[1].HelpfulVotes = 4
	if err := s.MarkHelpful(context.Background(), 2); err != nil {
		t.Fatalf("MarkHelpful: %v", err)
	}
	m := s.Movie()
	if got := m.Reviews[1].HelpfulVotes; got != 5 {
		t.Errorf("HelpfulVotes = %d, want the server's 5", got)
	}
	if m.AverageRating != 3 {
		t.Errorf("AverageRating = %v, want 3", m.AverageRating)
	}
}
