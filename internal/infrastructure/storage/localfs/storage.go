package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage keeps source documents flat under basePath and derivative
// artifacts under basePath/derivatives/<documentID>/.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(filepath.Join(basePath, "derivatives"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path := filepath.Join(s.basePath, key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(s.basePath, key)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) Attach(_ context.Context, documentID, kind string, data []byte, mimeType string) (string, error) {
	dir := filepath.Join(s.basePath, "derivatives", documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create derivative dir: %w", err)
	}

	name := kind + extensionFor(mimeType)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write derivative: %w", err)
	}
	return filepath.Join("derivatives", documentID, name), nil
}

func (s *Storage) Exists(_ context.Context, documentID, kind string) (bool, error) {
	pattern := filepath.Join(s.basePath, "derivatives", documentID, kind+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return false, fmt.Errorf("glob derivative: %w", err)
	}
	return len(matches) > 0, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}
