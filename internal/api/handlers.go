// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"movie-catalog/internal/domain"
	"movie-catalog/internal/images"
	"movie-catalog/internal/metrics"
	"movie-catalog/internal/rating"
	"movie-catalog/internal/store"
	"movie-catalog/internal/validation"
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies of the catalog HTTP handlers.
type Handler struct {
	store        store.Store
	images       images.Store
	imageBackend string
	logger       *slog.Logger
	maxUpload    int64
}

func NewHandler(s store.Store, img images.Store, imageBackend string, l *slog.Logger, maxUpload int64) *Handler {
	return &Handler{
		store:        s,
		images:       img,
		imageBackend: imageBackend,
		logger:       l,
		maxUpload:    maxUpload,
	}
}

// --- helpers ---

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.ErrorContext(r.Context(), "Failed to encode JSON response", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}

type validationResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

func (h *Handler) respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	verr, ok := validation.AsError(err)
	if !ok {
		h.logger.ErrorContext(r.Context(), "Validation failed unexpectedly", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.InfoContext(r.Context(), "Request validation failed", slog.String("error", verr.Error()))
	h.respondJSON(w, r, http.StatusBadRequest, validationResponse{Error: "validation failed", Errors: verr.Fields()})
}

// respondStoreError maps persistence errors to HTTP responses.
func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, store.ErrMovieNotFound):
		h.respondError(w, r, http.StatusNotFound, "Movie not found")
	case errors.Is(err, store.ErrReviewNotFound):
		h.respondError(w, r, http.StatusNotFound, "Review not found")
	case errors.Is(err, store.ErrGenreNotFound):
		h.respondValidation(w, r, validation.NewError("genres", "Unknown genre"))
	case errors.Is(err, store.ErrDuplicateGenre):
		h.respondError(w, r, http.StatusConflict, "Genre with this name already exists")
	default:
		h.logger.ErrorContext(r.Context(), "Store operation failed", slog.String("op", op), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to "+op)
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// queryID reads an optional positive id from the query string; 0 when absent.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// --- health ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "Health check failed", slog.String("error", err.Error()))
			h.respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// --- genres ---

func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.store.ListGenres(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err, "list genres")
		return
	}
	h.respondJSON(w, r, http.StatusOK, genres)
}

func (h *Handler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var form domain.GenreForm
	if !h.decodeJSON(w, r, &form) {
		return
	}
	form.Name = strings.TrimSpace(form.Name)
	if err := validation.Genre(form); err != nil {
		h.respondValidation(w, r, err)
		return
	}
	genre := domain.Genre{Name: form.Name}
	if err := h.store.CreateGenre(r.Context(), &genre); err != nil {
		h.respondStoreError(w, r, err, "create genre")
		return
	}
	h.logger.InfoContext(r.Context(), "Genre created", slog.Int64("genreID", genre.ID))
	h.respondJSON(w, r, http.StatusCreated, genre)
}

// --- movies ---

func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	genreID, err := queryID(r, "genres")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	movies, err := h.store.ListMovies(r.Context(), genreID)
	if err != nil {
		h.respondStoreError(w, r, err, "list movies")
		return
	}
	for i := range movies {
		movies[i] = rating.Recompute(movies[i])
	}
	h.respondJSON(w, r, http.StatusOK, movies)
}

func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "movieId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	movie, err := h.store.GetMovie(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "get movie")
		return
	}
	h.respondJSON(w, r, http.StatusOK, rating.Recompute(*movie))
}

func (h *Handler) GetMovieRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "movieId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	movie, err := h.store.GetMovie(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "get movie rating")
		return
	}
	h.respondJSON(w, r, http.StatusOK, rating.Summary(*movie))
}

func (h *Handler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, file, verr := h.parseMovieForm(w, r)
	if file != nil {
		defer file.Close()
	}
	if verr != nil {
		h.respondValidation(w, r, verr)
		return
	}
	if err := validation.Movie(form.MovieForm); err != nil {
		h.respondValidation(w, r, err)
		return
	}

	image, ok := h.saveImage(w, r, form.fileName, file)
	if !ok {
		return
	}
	movie := form.movie(0, image)
	if err := h.store.CreateMovie(ctx, &movie); err != nil {
		h.respondStoreError(w, r, err, "create movie")
		return
	}
	h.logger.InfoContext(ctx, "Movie created", slog.Int64("movieID", movie.ID), slog.String("title", movie.Title))
	h.respondJSON(w, r, http.StatusCreated, rating.Recompute(movie))
}

func (h *Handler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "movieId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := h.store.GetMovie(ctx, id)
	if err != nil {
		h.respondStoreError(w, r, err, "get movie")
		return
	}

	form, file, verr := h.parseMovieForm(w, r)
	if file != nil {
		defer file.Close()
	}
	if verr != nil {
		h.respondValidation(w, r, verr)
		return
	}
	form.HasImage = existing.Image != ""
	if err := validation.Movie(form.MovieForm); err != nil {
		h.respondValidation(w, r, err)
		return
	}

	image := existing.Image
	if file != nil {
		if image, err = h.storeImage(r, form.fileName, file); err != nil {
			h.respondImageError(w, r, err)
			return
		}
	}
	movie := form.movie(id, image)
	if err := h.store.UpdateMovie(ctx, &movie); err != nil {
		h.respondStoreError(w, r, err, "update movie")
		return
	}
	h.logger.InfoContext(ctx, "Movie updated", slog.Int64("movieID", movie.ID))
	h.respondJSON(w, r, http.StatusOK, rating.Recompute(movie))
}

func (h *Handler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "movieId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.DeleteMovie(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err, "delete movie")
		return
	}
	h.logger.InfoContext(r.Context(), "Movie deleted", slog.Int64("movieID", id))
	w.WriteHeader(http.StatusNoContent)
}

type movieForm struct {
	domain.MovieForm
	fileName string
}

func (f movieForm) movie(id int64, image string) domain.Movie {
	genres := make([]domain.Genre, 0, len(f.Genres))
	for _, gid := range f.Genres {
		genres = append(genres, domain.Genre{ID: gid})
	}
	return domain.Movie{
		ID:          id,
		Title:       strings.TrimSpace(f.Title),
		ReleaseDate: f.ReleaseDate,
		Description: strings.TrimSpace(f.Description),
		Image:       image,
		Genres:      genres,
	}
}

// parseMovieForm reads a multipart (or url-encoded) movie form. Genres may be
// repeated or comma-separated. The returned file is nil when no image was sent.
func (h *Handler) parseMovieForm(w http.ResponseWriter, r *http.Request) (movieForm, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var form movieForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return form, nil, validation.NewError("image", "Upload is too large or malformed")
		}
	} else if err := r.ParseForm(); err != nil {
		return form, nil, validation.NewError("title", "Malformed form data")
	}

	form.Title = r.FormValue("title")
	form.ReleaseDate = strings.TrimSpace(r.FormValue("release_date"))
	form.Description = r.FormValue("description")
	for _, raw := range r.Form["genres"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return form, nil, validation.NewError("genres", "Invalid genre id")
			}
			form.Genres = append(form.Genres, id)
		}
	}

	if r.MultipartForm == nil {
		return form, nil, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, validation.NewError("image", "Could not read image")
	}
	form.Image = header.Filename
	form.fileName = header.Filename
	return form, file, nil
}

func (h *Handler) saveImage(w http.ResponseWriter, r *http.Request, name string, file multipart.File) (string, bool) {
	ref, err := h.storeImage(r, name, file)
	if err != nil {
		h.respondImageError(w, r, err)
		return "", false
	}
	return ref, true
}

func (h *Handler) storeImage(r *http.Request, name string, file multipart.File) (string, error) {
	ref, err := h.images.Save(r.Context(), name, file)
	metrics.RecordImageUpload(h.imageBackend, err)
	return ref, err
}

func (h *Handler) respondImageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, images.ErrUnsupportedType) {
		h.respondValidation(w, r, validation.NewError("image", "Image must be a JPEG, PNG, GIF or WebP file"))
		return
	}
	h.logger.ErrorContext(r.Context(), "Failed to store image", slog.String("error", err.Error()))
	h.respondError(w, r, http.StatusInternalServerError, "Failed to store image")
}

// --- reviews ---

type reviewRequest struct {
	domain.ReviewFields
	VerifiedPurchase bool `json:"verified_purchase"`
}

func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	movieID, err := pathID(r, "movieId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req reviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Review(req.ReviewFields); err != nil {
		h.respondValidation(w, r, err)
		return
	}
	review := domain.Review{
		MovieID:          movieID,
		ReviewerName:     strings.TrimSpace(req.ReviewerName),
		Title:            strings.TrimSpace(req.Title),
		Rating:           req.Rating,
		Comment:          strings.TrimSpace(req.Comment),
		VerifiedPurchase: req.VerifiedPurchase,
	}
	err = h.store.CreateReview(ctx, &review)
	metrics.RecordReviewOperation("add", err)
	if err != nil {
		h.respondStoreError(w, r, err, "create review")
		return
	}
	h.logger.InfoContext(ctx, "Review created", slog.Int64("reviewID", review.ID), slog.Int64("movieID", movieID))
	h.respondJSON(w, r, http.StatusCreated, review)
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	movieID, err := queryID(r, "movie")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reviews, err := h.store.ListReviews(r.Context(), movieID)
	if err != nil {
		h.respondStoreError(w, r, err, "list reviews")
		return
	}
	h.respondJSON(w, r, http.StatusOK, reviews)
}

func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "reviewId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var fields domain.ReviewFields
	if !h.decodeJSON(w, r, &fields) {
		return
	}
	if err := validation.Review(fields); err != nil {
		h.respondValidation(w, r, err)
		return
	}
	fields.ReviewerName = strings.TrimSpace(fields.ReviewerName)
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Comment = strings.TrimSpace(fields.Comment)

	review, err := h.store.UpdateReview(ctx, id, fields)
	metrics.RecordReviewOperation("edit", err)
	if err != nil {
		h.respondStoreError(w, r, err, "update review")
		return
	}
	h.logger.InfoContext(ctx, "Review updated", slog.Int64("reviewID", id))
	h.respondJSON(w, r, http.StatusOK, review)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reviewId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err = h.store.DeleteReview(r.Context(), id)
	metrics.RecordReviewOperation("delete", err)
	if err != nil {
		h.respondStoreError(w, r, err, "delete review")
		return
	}
	h.logger.InfoContext(r.Context(), "Review deleted", slog.Int64("reviewID", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reviewId")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	review, err := h.store.MarkHelpful(r.Context(), id)
	metrics.RecordReviewOperation("helpful", err)
	if err != nil {
		h.respondStoreError(w, r, err, "record helpful vote")
		return
	}
	h.respondJSON(w, r, http.StatusOK, review)
}
