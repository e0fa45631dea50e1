package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// OCRUseCase recognizes text in image documents and in PDFs whose direct
// extraction came back empty. It runs at most once per document, re-triggers
// the text-dependent stages with the recognized content and finalizes the
// completion the orchestrator deferred.
type OCRUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	engine   ports.OCREngine
	renderer ports.DerivativeRenderer
	queue    ports.TaskQueue
	indexer  ports.SearchIndexer
	language string
	log      *slog.Logger
	now      func() time.Time
}

func NewOCRUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	engine ports.OCREngine,
	renderer ports.DerivativeRenderer,
	queue ports.TaskQueue,
	indexer ports.SearchIndexer,
	language string,
	log *slog.Logger,
) *OCRUseCase {
	return &OCRUseCase{
		repo:     repo,
		storage:  storage,
		engine:   engine,
		renderer: renderer,
		queue:    queue,
		indexer:  indexer,
		language: language,
		log:      log,
		now:      time.Now,
	}
}

func (uc *OCRUseCase) Run(ctx context.Context, task ports.Task) error {
	doc, err := uc.repo.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.VirusScan == domain.ScanInfected {
		return nil
	}
	if !doc.NeedsOCR() {
		// Already recognized or no longer eligible; just make sure the
		// deferred completion is not lost.
		return uc.finalize(ctx, doc)
	}

	text, err := uc.recognize(ctx, doc)
	if err != nil {
		// Recognition failure never blocks completion. Marking OCR as
		// performed keeps the stage from looping on the same document.
		uc.log.Warn("ocr recognition failed", "document_id", doc.ID, "error", err)
		if metaErr := uc.repo.AddMetadata(ctx, doc.ID, "ocr_error", err.Error()); metaErr != nil {
			uc.log.Warn("store ocr diagnostic failed", "document_id", doc.ID, "error", metaErr)
		}
		if markErr := uc.repo.MarkOCRComplete(ctx, doc.ID, ""); markErr != nil {
			return fmt.Errorf("mark ocr complete after failure: %w", markErr)
		}
		return uc.finalize(ctx, doc)
	}

	text = strings.TrimSpace(text)
	if err := uc.repo.MarkOCRComplete(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("persist ocr text: %w", err)
	}
	doc.OCRPerformed = true
	if doc.ExtractedText == "" {
		doc.ExtractedText = text
	} else if text != "" {
		doc.ExtractedText = doc.ExtractedText + "\n\n" + text
	}

	if err := uc.repo.AddMetadata(ctx, doc.ID, "ocr_completed_at", uc.now().UTC().Format(time.RFC3339)); err != nil {
		uc.log.Warn("store ocr timestamp failed", "document_id", doc.ID, "error", err)
	}

	if text != "" {
		// The earlier metadata and autotag runs saw empty text; rerun them
		// against the recognized content.
		for _, stage := range []string{ports.StageMetadata, ports.StageAutoTag} {
			task := ports.Task{Stage: stage, DocumentID: doc.ID}
			if err := uc.queue.Enqueue(ctx, ports.LaneDocumentProcessing, task); err != nil {
				return fmt.Errorf("re-enqueue %s stage: %w", stage, err)
			}
		}
	}

	if err := uc.indexer.Refresh(ctx, doc.ID); err != nil {
		uc.log.Warn("search index refresh failed", "document_id", doc.ID, "error", err)
	}
	return uc.finalize(ctx, doc)
}

// recognize runs the OCR engine against an image rendition of the document.
// PDFs are rasterized through the preview renderer first.
func (uc *OCRUseCase) recognize(ctx context.Context, doc *domain.Document) (string, error) {
	srcPath, cleanup, err := materialize(ctx, uc.storage, doc)
	if err != nil {
		return "", err
	}
	defer cleanup()

	format := domain.DetectFormat(doc.MimeType, doc.Filename)
	imagePath := srcPath
	if format == domain.FormatPDF {
		page, err := uc.renderer.Preview(ctx, srcPath, format)
		if err != nil {
			return "", fmt.Errorf("rasterize pdf for ocr: %w", err)
		}
		imagePath = filepath.Join(filepath.Dir(srcPath), "ocr-page.jpg")
		if err := os.WriteFile(imagePath, page, 0o600); err != nil {
			return "", fmt.Errorf("write rasterized page: %w", err)
		}
	}

	return uc.engine.Recognize(ctx, imagePath, uc.languageHint(doc))
}

// languageHint falls back to marker-based detection when no language is
// configured: documents with French tokens in the filename or any already
// extracted text get "fra", everything else "eng".
func (uc *OCRUseCase) languageHint(doc *domain.Document) string {
	if uc.language != "" {
		return uc.language
	}
	sample := strings.ToLower(doc.Filename + " " + doc.ExtractedText)
	for _, marker := range []string{"facture", "contrat", "devis", "rapport", "é", "è", "ç", "à"} {
		if strings.Contains(sample, marker) {
			return "fra"
		}
	}
	return "eng"
}

// finalize moves the document out of processing unless the autotag stage
// already escalated it to the external classifier.
func (uc *OCRUseCase) finalize(ctx context.Context, doc *domain.Document) error {
	if doc.Status == domain.StatusAIProcessing {
		return nil
	}
	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}
