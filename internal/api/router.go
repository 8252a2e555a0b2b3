// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	CORSOrigins []string
	RateLimit   int // per IP per minute
	MediaPrefix string
	Media       http.Handler // nil when images are stored remotely
}

// NewRouter wires the catalog routes. Paths keep their trailing slash.
func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(Metrics)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if cfg.Media != nil && cfg.MediaPrefix != "" {
		router.PathPrefix(cfg.MediaPrefix).Handler(cfg.Media).Methods(http.MethodGet, http.MethodHead)
	}

	// API routes sit on the root router so that a method mismatch reaches
	// MethodNotAllowedHandler.
	router.HandleFunc("/api/movies/", h.ListMovies).Methods(http.MethodGet)
	router.HandleFunc("/api/movies/", h.CreateMovie).Methods(http.MethodPost)
	router.HandleFunc("/api/movies/{movieId:[0-9]+}/", h.GetMovie).Methods(http.MethodGet)
	router.HandleFunc("/api/movies/{movieId:[0-9]+}/", h.UpdateMovie).Methods(http.MethodPut)
	router.HandleFunc("/api/movies/{movieId:[0-9]+}/", h.DeleteMovie).Methods(http.MethodDelete)
	router.HandleFunc("/api/movies/{movieId:[0-9]+}/rating/", h.GetMovieRating).Methods(http.MethodGet)
	router.HandleFunc("/api/movies/{movieId:[0-9]+}/add_review/", h.AddReview).Methods(http.MethodPost)

	router.HandleFunc("/api/genres/", h.ListGenres).Methods(http.MethodGet)
	router.HandleFunc("/api/genres/", h.CreateGenre).Methods(http.MethodPost)

	router.HandleFunc("/api/reviews/", h.ListReviews).Methods(http.MethodGet)
	router.HandleFunc("/api/reviews/{reviewId:[0-9]+}/", h.UpdateReview).Methods(http.MethodPut)
	router.HandleFunc("/api/reviews/{reviewId:[0-9]+}/", h.DeleteReview).Methods(http.MethodDelete)
	router.HandleFunc("/api/reviews/{reviewId:[0-9]+}/helpful/", h.MarkHelpful).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, r, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var handler http.Handler = router
	handler = RateLimit(cfg.RateLimit)(handler)
	handler = CORS(cfg.CORSOrigins)(handler)
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	handler = RequestID(handler)
	return handler
}
