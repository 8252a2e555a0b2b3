// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"movie-catalog/internal/domain"
	"movie-catalog/internal/metrics"
)

const maxErrorBody = 64 << 10

// MovieInput is a movie write. Image is optional on update.
type MovieInput struct {
	Form      domain.MovieForm
	ImageName string
	Image     io.Reader
}

// Client talks to the catalog HTTP API. It never retries; a circuit breaker
// fails calls fast after repeated transport or server errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient  *http.Client
	maxFailures uint32
	openTimeout time.Duration
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(o *clientOptions) {
		o.maxFailures = maxFailures
		o.openTimeout = openTimeout
	}
}

// New returns a client for the API rooted at baseURL (e.g.
// http://localhost:8080/api). timeout bounds every call.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	o := clientOptions{
		httpClient:  &http.Client{},
		maxFailures: 5,
		openTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: o.httpClient,
		timeout:    timeout,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 1,
		Timeout:     o.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.maxFailures
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the service is healthy.
			var rerr *RemoteError
			if errors.As(err, &rerr) && rerr.StatusCode >= 400 && rerr.StatusCode < 500 {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("Circuit breaker state changed",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return c
}

// --- movies ---

func (c *Client) ListMovies(ctx context.Context, genreID int64) ([]domain.Movie, error) {
	path := "/movies/"
	if genreID != 0 {
		path += "?genres=" + url.QueryEscape(strconv.FormatInt(genreID, 10))
	}
	var movies []domain.Movie
	if err := c.doJSON(ctx, "list movies", http.MethodGet, path, nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func (c *Client) GetMovie(ctx context.Context, id int64) (domain.Movie, error) {
	var movie domain.Movie
	err := c.doJSON(ctx, "get movie", http.MethodGet, fmt.Sprintf("/movies/%d/", id), nil, &movie)
	return movie, err
}

func (c *Client) MovieRating(ctx context.Context, id int64) (domain.AggregatedRating, error) {
	var agg domain.AggregatedRating
	err := c.doJSON(ctx, "get movie rating", http.MethodGet, fmt.Sprintf("/movies/%d/rating/", id), nil, &agg)
	return agg, err
}

func (c *Client) CreateMovie(ctx context.Context, in MovieInput) (domain.Movie, error) {
	var movie domain.Movie
	err := c.doMultipart(ctx, "create movie", http.MethodPost, "/movies/", in, &movie)
	return movie, err
}

func (c *Client) UpdateMovie(ctx context.Context, id int64, in MovieInput) (domain.Movie, error) {
	var movie domain.Movie
	err := c.doMultipart(ctx, "update movie", http.MethodPut, fmt.Sprintf("/movies/%d/", id), in, &movie)
	return movie, err
}

func (c *Client) DeleteMovie(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete movie", http.MethodDelete, fmt.Sprintf("/movies/%d/", id), nil, nil)
}

// --- genres ---

func (c *Client) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	var genres []domain.Genre
	if err := c.doJSON(ctx, "list genres", http.MethodGet, "/genres/", nil, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

func (c *Client) CreateGenre(ctx context.Context, name string) (domain.Genre, error) {
	var genre domain.Genre
	err := c.doJSON(ctx, "create genre", http.MethodPost, "/genres/", domain.GenreForm{Name: name}, &genre)
	return genre, err
}

// --- reviews ---

func (c *Client) ListReviews(ctx context.Context, movieID int64) ([]domain.Review, error) {
	path := "/reviews/"
	if movieID != 0 {
		path += "?movie=" + strconv.FormatInt(movieID, 10)
	}
	var reviews []domain.Review
	if err := c.doJSON(ctx, "list reviews", http.MethodGet, path, nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (c *Client) AddReview(ctx context.Context, movieID int64, fields domain.ReviewFields) (domain.Review, error) {
	var review domain.Review
	err := c.doJSON(ctx, "add review", http.MethodPost, fmt.Sprintf("/movies/%d/add_review/", movieID), fields, &review)
	return review, err
}

func (c *Client) UpdateReview(ctx context.Context, reviewID int64, fields domain.ReviewFields) (domain.Review, error) {
	var review domain.Review
	err := c.doJSON(ctx, "update review", http.MethodPut, fmt.Sprintf("/reviews/%d/", reviewID), fields, &review)
	return review, err
}

func (c *Client) DeleteReview(ctx context.Context, reviewID int64) error {
	return c.doJSON(ctx, "delete review", http.MethodDelete, fmt.Sprintf("/reviews/%d/", reviewID), nil, nil)
}

func (c *Client) MarkHelpful(ctx context.Context, reviewID int64) (domain.Review, error) {
	var review domain.Review
	err := c.doJSON(ctx, "mark review helpful", http.MethodPost, fmt.Sprintf("/reviews/%d/helpful/", reviewID), nil, &review)
	return review, err
}

// --- transport ---

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body []byte
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = data
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, contentType, body, out)
}

func (c *Client) doMultipart(ctx context.Context, op, method, path string, in MovieInput, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"title", in.Form.Title},
		{"release_date", in.Form.ReleaseDate},
		{"description", in.Form.Description},
	}
	for _, g := range in.Form.Genres {
		fields = append(fields, [2]string{"genres", strconv.FormatInt(g, 10)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("%s: encode form: %w", op, err)
		}
	}
	if in.Image != nil {
		fw, err := mw.CreateFormFile("image", in.ImageName)
		if err != nil {
			return fmt.Errorf("%s: encode image: %w", op, err)
		}
		if _, err := io.Copy(fw, in.Image); err != nil {
			return fmt.Errorf("%s: read image: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: encode form: %w", op, err)
	}
	return c.do(ctx, op, method, path, mw.FormDataContentType(), buf.Bytes(), out)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.DebugContext(ctx, "Calling catalog API", slog.String("op", op), slog.String("method", method), slog.String("path", path))
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, &RemoteError{Op: op, Err: err}
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &RemoteError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, decodeError(op, resp)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &RemoteError{Op: op, Message: "catalog service unavailable", Err: err}
		}
		c.logger.WarnContext(ctx, "Catalog API call failed", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	rerr := &RemoteError{Op: op, StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		rerr.Err = err
		return rerr
	}
	var body errorResponse
	if json.Unmarshal(data, &body) == nil {
		rerr.Message = body.Error
		rerr.Fields = body.Errors
	} else {
		rerr.Message = strings.TrimSpace(string(data))
	}
	return rerr
}
