// internal/domain/movie.go
package domain

import (
	"time"
)

// ReleaseDateLayout is the wire and storage format of Movie.ReleaseDate.
const ReleaseDateLayout = "2006-01-02"

// Movie is the catalog aggregate: the movie record together with its genres,
// its reviews and the average rating derived from them.
type Movie struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	ReleaseDate   string    `json:"release_date" db:"release_date"`
	Description   string    `json:"description" db:"description"`
	Image         string    `json:"image" db:"image"`
	Genres        []Genre   `json:"genres"`
	Reviews       []Review  `json:"reviews"`
	AverageRating float64   `json:"average_rating"` // derived from Reviews, never stored
	CreatedAt     time.Time `json:"-" db:"created_at"`
	UpdatedAt     time.Time `json:"-" db:"updated_at"`
}

// GenreIDs returns the ids of the movie's genres in display order.
func (m Movie) GenreIDs() []int64 {
	ids := make([]int64, 0, len(m.Genres))
	for _, g := range m.Genres {
		ids = append(ids, g.ID)
	}
	return ids
}

// HasGenre reports whether the movie is tagged with the given genre.
func (m Movie) HasGenre(genreID int64) bool {
	for _, g := range m.Genres {
		if g.ID == genreID {
			return true
		}
	}
	return false
}

// FindReview returns the index of the review with the given id, or -1.
func (m Movie) FindReview(reviewID int64) int {
	for i, r := range m.Reviews {
		if r.ID == reviewID {
			return i
		}
	}
	return -1
}

// MovieForm is the movie authoring form. Image holds the uploaded file name
// (or an existing image reference when editing); HasImage is set by the
// caller when the movie already has an image so that an edit may omit it.
type MovieForm struct {
	Title       string  `json:"title" validate:"notblank"`
	ReleaseDate string  `json:"release_date" validate:"required,datetime=2006-01-02"`
	Description string  `json:"description" validate:"notblank"`
	Image       string  `json:"image" validate:"required_without=HasImage"`
	HasImage    bool    `json:"-"`
	Genres      []int64 `json:"genres" validate:"min=1"`
}
