// Package images stores uploaded movie posters and returns the reference
// that is saved in Movie.Image.
package images

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for files that are not a known image type.
var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store saves an uploaded image under a generated name.
type Store interface {
	// Save stores the content of r; filename is only used for its extension.
	// It returns the public reference (path or URL) of the stored image.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

func extension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedType
	}
	return ext, nil
}
