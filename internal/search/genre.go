package search

import "movie-catalog/internal/domain"

// AllGenresLabel is shown when no genre is selected.
const AllGenresLabel = "All Genres"

// GenreSelection is the optional genre a list view is narrowed to. The zero
// value selects all genres.
type GenreSelection struct {
	id  int64
	set bool
}

// Select narrows the selection to one genre.
func (s *GenreSelection) Select(id int64) {
	s.id, s.set = id, true
}

// Toggle selects id, or clears the selection if id is already selected.
func (s *GenreSelection) Toggle(id int64) {
	if s.set && s.id == id {
		s.Clear()
		return
	}
	s.Select(id)
}

// Clear resets the selection to all genres.
func (s *GenreSelection) Clear() {
	s.id, s.set = 0, false
}

// ID returns the selected genre id, if any.
func (s GenreSelection) ID() (int64, bool) {
	return s.id, s.set
}

// Label returns the name of the selected genre, or AllGenresLabel when
// nothing is selected or the id is not in genres.
func (s GenreSelection) Label(genres []domain.Genre) string {
	if !s.set {
		return AllGenresLabel
	}
	for _, g := range genres {
		if g.ID == s.id {
			return g.Name
		}
	}
	return AllGenresLabel
}

// Matches reports whether the movie belongs to the selection.
func (s GenreSelection) Matches(m domain.Movie) bool {
	return !s.set || m.HasGenre(s.id)
}

// Apply returns the movies belonging to the selection, in input order.
func (s GenreSelection) Apply(movies []domain.Movie) []domain.Movie {
	out := make([]domain.Movie, 0, len(movies))
	for _, m := range movies {
		if s.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}
