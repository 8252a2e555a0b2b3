package domain

// Genre is a flat movie category.
type Genre struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// GenreForm is the request body for creating a genre.
type GenreForm struct {
	Name string `json:"name" validate:"notblank,max=100"`
}
