package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStore uploads images to a Cloudinary folder and returns the
// secure URL.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *slog.Logger
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string, logger *slog.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder, logger: logger}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if _, err := extension(filename); err != nil {
		return "", err
	}
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID: uuid.NewString(),
		Folder:   s.folder,
		Tags:     []string{"movie-catalog"},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Cloudinary upload failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to upload image %s: %w", filename, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image %s: %s", filename, res.Error.Message)
	}
	s.logger.InfoContext(ctx, "Image uploaded to Cloudinary", slog.String("public_id", res.PublicID))
	return res.SecureURL, nil
}
