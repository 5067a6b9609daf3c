// Package storage persists uploaded files to local disk or S3 and returns the
// public URL the file is served from.
package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/google/uuid"
)

const (
	FeaturedDir = "featured"

	MaxImageSize = 5 << 20
)

type Storage interface {
	Save(ctx context.Context, file *multipart.FileHeader, dir string) (string, error)
	Delete(ctx context.Context, url string) error
	Mode() string
}

// ValidateImage accepts image/* uploads up to MaxImageSize.
func ValidateImage(file *multipart.FileHeader) error {
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return apperror.Validation("Only image files are allowed", map[string]string{
			"featuredImage": "must be an image",
		})
	}
	if file.Size > MaxImageSize {
		return apperror.Validation("File too large", map[string]string{
			"featuredImage": "must be at most 5MB",
		})
	}
	return nil
}

func objectName(dir, filename string) string {
	return fmt.Sprintf("%s/%s%s", dir, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
}
