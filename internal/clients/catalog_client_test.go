package clients

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"movie-catalog/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListMoviesSendsGenreFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/movies/" || r.URL.Query().Get("genres") != "3" {
			t.Errorf("unexpected request %s", r.URL)
		}
		writeJSON(w, http.StatusOK, []domain.Movie{{ID: 1, Title: "Dune"}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", time.Second, quietLogger())
	movies, err := c.ListMovies(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Dune" {
		t.Errorf("movies = %+v", movies)
	}
}

func TestAddReviewSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/movies/7/add_review/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var fields domain.ReviewFields
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			t.Errorf("decode: %v", err)
		}
		writeJSON(w, http.StatusCreated, domain.Review{ID: 11, MovieID: 7, ReviewerName: fields.ReviewerName, Rating: fields.Rating})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, quietLogger())
	review, err := c.AddReview(context.Background(), 7, domain.ReviewFields{ReviewerName: "Ann", Title: "t", Rating: 4, Comment: "c"})
	if err != nil {
		t.Fatalf("AddReview: %v", err)
	}
	if review.ID != 11 || review.Rating != 4 || review.ReviewerName != "Ann" {
		t.Errorf("review = %+v", review)
	}
}

func TestCreateMovieSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("title") != "Dune" || len(r.Form["genres"]) != 2 {
			t.Errorf("form = %v", r.Form)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "dune.png" || string(data) != "png" {
			t.Errorf("file %s = %q", header.Filename, data)
		}
		writeJSON(w, http.StatusCreated, domain.Movie{ID: 5, Title: "Dune"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, quietLogger())
	movie, err := c.CreateMovie(context.Background(), MovieInput{
		Form:      domain.MovieForm{Title: "Dune", ReleaseDate: "2021-10-22", Description: "d", Genres: []int64{1, 2}},
		ImageName: "dune.png",
		Image:     strings.NewReader("png"),
	})
	if err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	if movie.ID != 5 {
		t.Errorf("movie = %+v", movie)
	}
}

func TestRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movies/404/":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Movie not found"})
		case "/movies/1/add_review/":
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "validation failed",
				"errors": map[string]string{"rating": "Please select a rating"},
			})
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second, quietLogger())
	ctx := context.Background()

	_, err := c.GetMovie(ctx, 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMovie(404): got %v, want ErrNotFound", err)
	}
	rerr, ok := AsRemoteError(err)
	if !ok || rerr.Message != "Movie not found" || rerr.Op != "get movie" {
		t.Errorf("remote error = %+v", rerr)
	}

	_, err = c.AddReview(ctx, 1, domain.ReviewFields{})
	rerr, ok = AsRemoteError(err)
	if !ok || rerr.StatusCode != http.StatusBadRequest {
		t.Fatalf("AddReview: got %v", err)
	}
	verr, ok := rerr.Validation()
	if !ok || verr.Field("rating") != "Please select a rating" {
		t.Errorf("validation fields = %v", rerr.Fields)
	}

	err = c.DeleteMovie(ctx, 9)
	rerr, ok = AsRemoteError(err)
	if !ok || rerr.StatusCode != http.StatusInternalServerError || rerr.Message != "boom" {
		t.Errorf("DeleteMovie: got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("500 must not match ErrNotFound")
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, quietLogger())
	_, err := c.ListGenres(context.Background())
	rerr, ok := AsRemoteError(err)
	if !ok || rerr.StatusCode != 0 || rerr.Err == nil {
		t.Fatalf("ListGenres: got %v", err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, quietLogger(), WithBreaker(2, time.Minute))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.ListGenres(ctx); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := c.ListGenres(ctx)
	rerr, ok := AsRemoteError(err)
	if !ok || rerr.Message != "catalog service unavailable" {
		t.Fatalf("third call: got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Review not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, quietLogger(), WithBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		if err := c.DeleteReview(context.Background(), 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond, quietLogger())
	_, err := c.GetMovie(context.Background(), 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetMovie: got %v, want deadline exceeded", err)
	}
}
