// Package search implements the catalog's free-text filter and the genre
// selection used by list views.
package search

import (
	"strings"

	"movie-catalog/internal/domain"
)

// Terms lower-cases the query and splits it on whitespace.
func Terms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Filter returns the movies matching any term of the query, in input order.
// A term matches when it is a substring of the title, the description or
// one of the genre names, compared case-insensitively. An empty query
// matches nothing.
func Filter(movies []domain.Movie, query string) []domain.Movie {
	terms := Terms(query)
	out := make([]domain.Movie, 0)
	if len(terms) == 0 {
		return out
	}
	for _, m := range movies {
		if Matches(m, terms) {
			out = append(out, m)
		}
	}
	return out
}

// Matches reports whether any of the lower-case terms occurs in the movie.
func Matches(m domain.Movie, terms []string) bool {
	haystack := make([]string, 0, 2+len(m.Genres))
	haystack = append(haystack, strings.ToLower(m.Title), strings.ToLower(m.Description))
	for _, g := range m.Genres {
		haystack = append(haystack, strings.ToLower(g.Name))
	}
	for _, term := range terms {
		for _, field := range haystack {
			if strings.Contains(field, term) {
				return true
			}
		}
	}
	return false
}
