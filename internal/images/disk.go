package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore keeps images in a local directory served under URLPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
	logger    *slog.Logger
}

func NewDiskStore(dir, urlPrefix string, logger *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir %s: %w", dir, err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix, logger: logger}, nil
}

func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext, err := extension(filename)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	s.logger.InfoContext(ctx, "Image stored on disk", slog.String("file", name))
	return s.urlPrefix + name, nil
}

// Handler serves the stored images; mount it at the URL prefix.
func (s *DiskStore) Handler() http.Handler {
	return http.StripPrefix(s.urlPrefix, http.FileServer(http.Dir(s.dir)))
}

// URLPrefix is the path images are served under.
func (s *DiskStore) URLPrefix() string {
	return s.urlPrefix
}
