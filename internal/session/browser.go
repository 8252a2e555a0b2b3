package session

import (
	"context"

	"movie-catalog/internal/domain"
	"movie-catalog/internal/rating"
	"movie-catalog/internal/search"
)

// Browser is the movie list view: the genre list, the current genre
// selection and the movies last shown.
type Browser struct {
	catalog   Catalog
	selection search.GenreSelection
	genres    []domain.Genre
	movies    []domain.Movie
}

func NewBrowser(catalog Catalog) *Browser {
	return &Browser{catalog: catalog}
}

// LoadGenres fetches the genre list.
func (b *Browser) LoadGenres(ctx context.Context) ([]domain.Genre, error) {
	genres, err := b.catalog.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	b.genres = genres
	return genres, nil
}

// Load fetches the movies of the selected genre, or all movies.
func (b *Browser) Load(ctx context.Context) ([]domain.Movie, error) {
	id, _ := b.selection.ID()
	movies, err := b.catalog.ListMovies(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range movies {
		movies[i] = rating.Recompute(movies[i])
	}
	b.movies = movies
	return movies, nil
}

// SelectGenre toggles the genre and reloads. Selecting the selected genre
// goes back to all genres.
func (b *Browser) SelectGenre(ctx context.Context, genreID int64) ([]domain.Movie, error) {
	prev := b.selection
	b.selection.Toggle(genreID)
	movies, err := b.Load(ctx)
	if err != nil {
		b.selection = prev
		return nil, err
	}
	return movies, nil
}

// ClearGenre selects all genres and reloads.
func (b *Browser) ClearGenre(ctx context.Context) ([]domain.Movie, error) {
	prev := b.selection
	b.selection.Clear()
	movies, err := b.Load(ctx)
	if err != nil {
		b.selection = prev
		return nil, err
	}
	return movies, nil
}

// Search fetches the full catalog and filters it by query. An empty query
// returns no movies without calling the service.
func (b *Browser) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	if len(search.Terms(query)) == 0 {
		return []domain.Movie{}, nil
	}
	movies, err := b.catalog.ListMovies(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range movies {
		movies[i] = rating.Recompute(movies[i])
	}
	return search.Filter(movies, query), nil
}

// GenreLabel names the current selection.
func (b *Browser) GenreLabel() string {
	return b.selection.Label(b.genres)
}

// Selection returns the current genre selection.
func (b *Browser) Selection() search.GenreSelection {
	return b.selection
}

// Movies returns the movies from the last successful Load.
func (b *Browser) Movies() []domain.Movie {
	return append([]domain.Movie(nil), b.movies...)
}
