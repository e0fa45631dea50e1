package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

const (
	derivativePreview   = "preview"
	derivativeThumbnail = "thumbnail"

	// Thumbnail generation prefers running after the preview so listings
	// never show a thumbnail for a document whose preview still fails.
	thumbnailRetryDelay = 5 * time.Second
	thumbnailMaxWaits   = 3
)

// PreviewUseCase renders the large preview image for a document. Renderer
// failures degrade to a format icon inside the renderer, so an error here
// means even the fallback could not be produced.
type PreviewUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	renderer ports.DerivativeRenderer
	log      *slog.Logger
}

func NewPreviewUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	renderer ports.DerivativeRenderer,
	log *slog.Logger,
) *PreviewUseCase {
	return &PreviewUseCase{repo: repo, storage: storage, renderer: renderer, log: log}
}

func (uc *PreviewUseCase) Run(ctx context.Context, task ports.Task) error {
	doc, err := uc.repo.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if !doc.SafeToAccess() {
		return nil
	}

	exists, err := uc.storage.Exists(ctx, doc.ID, derivativePreview)
	if err != nil {
		return fmt.Errorf("check existing preview: %w", err)
	}
	if exists {
		return nil
	}

	srcPath, cleanup, err := materialize(ctx, uc.storage, doc)
	if err != nil {
		return err
	}
	defer cleanup()

	format := domain.DetectFormat(doc.MimeType, doc.Filename)
	data, err := uc.renderer.Preview(ctx, srcPath, format)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}

	key, err := uc.storage.Attach(ctx, doc.ID, derivativePreview, data, "image/jpeg")
	if err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	uc.log.Info("preview generated", "document_id", doc.ID, "key", key, "bytes", len(data))
	return nil
}

// ThumbnailUseCase renders the small listing thumbnail. It defers briefly
// while the preview is still being generated, then renders regardless so a
// broken preview never starves the thumbnail.
type ThumbnailUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	renderer ports.DerivativeRenderer
	queue    ports.TaskQueue
	log      *slog.Logger
}

func NewThumbnailUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	renderer ports.DerivativeRenderer,
	queue ports.TaskQueue,
	log *slog.Logger,
) *ThumbnailUseCase {
	return &ThumbnailUseCase{repo: repo, storage: storage, renderer: renderer, queue: queue, log: log}
}

func (uc *ThumbnailUseCase) Run(ctx context.Context, task ports.Task) error {
	doc, err := uc.repo.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if !doc.SafeToAccess() {
		return nil
	}

	exists, err := uc.storage.Exists(ctx, doc.ID, derivativeThumbnail)
	if err != nil {
		return fmt.Errorf("check existing thumbnail: %w", err)
	}
	if exists {
		return nil
	}

	previewReady, err := uc.storage.Exists(ctx, doc.ID, derivativePreview)
	if err != nil {
		return fmt.Errorf("check preview readiness: %w", err)
	}
	if !previewReady && task.Attempt < thumbnailMaxWaits {
		retry := ports.Task{Stage: ports.StageThumbnail, DocumentID: doc.ID, Attempt: task.Attempt + 1}
		if err := uc.queue.EnqueueAfter(ctx, ports.LaneDocumentProcessing, retry, thumbnailRetryDelay); err != nil {
			return fmt.Errorf("defer thumbnail stage: %w", err)
		}
		uc.log.Info("thumbnail deferred, preview pending", "document_id", doc.ID, "attempt", task.Attempt)
		return nil
	}

	srcPath, cleanup, err := materialize(ctx, uc.storage, doc)
	if err != nil {
		return err
	}
	defer cleanup()

	format := domain.DetectFormat(doc.MimeType, doc.Filename)
	data, err := uc.renderer.Thumbnail(ctx, srcPath, format)
	if err != nil {
		return fmt.Errorf("render thumbnail: %w", err)
	}

	if _, err := uc.storage.Attach(ctx, doc.ID, derivativeThumbnail, data, "image/jpeg"); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}
	uc.log.Info("thumbnail generated", "document_id", doc.ID, "bytes", len(data))
	return nil
}
