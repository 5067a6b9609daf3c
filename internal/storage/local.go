package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix is the route the server exposes the upload directory under.
const PublicPrefix = "/uploads"

type Local struct {
	baseDir string
	baseURL string
}

func NewLocal(baseDir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, FeaturedDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %v", baseDir, err)
	}
	return &Local{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Mode() string {
	return "local"
}

func (l *Local) Save(_ context.Context, file *multipart.FileHeader, dir string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	name := objectName(dir, file.Filename)
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	return l.baseURL + PublicPrefix + "/" + name, nil
}

// Delete removes a file previously returned by Save. Paths that resolve
// outside the upload directory are refused.
func (l *Local) Delete(_ context.Context, url string) error {
	rel := strings.TrimPrefix(url, l.baseURL)
	rel = strings.TrimPrefix(rel, PublicPrefix+"/")

	baseAbs, err := filepath.Abs(l.baseDir)
	if err != nil {
		return fmt.Errorf("invalid base path: %v", err)
	}
	absPath, err := filepath.Abs(filepath.Join(l.baseDir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("invalid file path: %v", err)
	}
	if !strings.HasPrefix(absPath, baseAbs+string(filepath.Separator)) {
		return fmt.Errorf("file path outside uploads directory")
	}

	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}
