package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// materialize copies the stored source document into a temp directory so
// external tools that only take file paths can read it. The returned cleanup
// removes the directory and must always be called.
func materialize(ctx context.Context, storage ports.ObjectStorage, doc *domain.Document) (string, func(), error) {
	reader, err := storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	dir, err := os.MkdirTemp("", "docstream-stage-")
	if err != nil {
		return "", nil, fmt.Errorf("create stage workspace: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(doc.Filename))
	file, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("create stage file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("copy source document: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("flush stage file: %w", err)
	}
	return path, cleanup, nil
}
