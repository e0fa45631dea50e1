package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.TaskQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	upload ports.DocumentUpload,
	body io.Reader,
) (*domain.Document, error) {
	if upload.Filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename))
	now := time.Now().UTC()

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(body, hasher)}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:             id,
		OrganizationID: upload.OrganizationID,
		UploaderID:     upload.UploaderID,
		UploaderName:   upload.UploaderName,
		Filename:       upload.Filename,
		MimeType:       upload.MimeType,
		StoragePath:    storageKey,
		SizeBytes:      counter.n,
		ContentHash:    hex.EncodeToString(hasher.Sum(nil)),
		Status:         domain.StatusPending,
		VirusScan:      domain.ScanUnscanned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	task := ports.Task{Stage: ports.StageProcess, DocumentID: id}
	if err := uc.queue.Enqueue(ctx, ports.LaneDocumentProcessing, task); err != nil {
		return nil, fmt.Errorf("enqueue processing task: %w", err)
	}
	return doc, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	replacer := strings.NewReplacer(" ", "_", "\\", "_", "..", "_")
	return replacer.Replace(base)
}
