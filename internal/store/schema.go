package store

// schema returns the DDL for the given driver. Only the key column type
// differs between PostgreSQL and SQLite.
func schema(driver string) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS genres (
			id ` + pk + `,
			name VARCHAR(100) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS movies (
			id ` + pk + `,
			title TEXT NOT NULL,
			release_date VARCHAR(10) NOT NULL,
			description TEXT NOT NULL,
			image TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS movie_genres (
			movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
			genre_id BIGINT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			PRIMARY KEY (movie_id, genre_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id ` + pk + `,
			movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
			reviewer_name TEXT NOT NULL,
			title TEXT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NOT NULL,
			helpful_votes INTEGER NOT NULL DEFAULT 0,
			verified_purchase BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			edited_at TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_movie_id ON reviews (movie_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movie_genres_genre_id ON movie_genres (genre_id)`,
	}
}
