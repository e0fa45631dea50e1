package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// AIClassifyUseCase is the external classification fallback running on the
// ai_processing lane. It finalizes the ai_processing sub-state either way:
// a usable answer becomes a tag and template application, no answer just
// completes the document.
type AIClassifyUseCase struct {
	repo       ports.DocumentRepository
	classifier ports.AIClassifier
	autotag    *AutoTagUseCase
	log        *slog.Logger
}

func NewAIClassifyUseCase(
	repo ports.DocumentRepository,
	classifier ports.AIClassifier,
	autotag *AutoTagUseCase,
	log *slog.Logger,
) *AIClassifyUseCase {
	return &AIClassifyUseCase{
		repo:       repo,
		classifier: classifier,
		autotag:    autotag,
		log:        log,
	}
}

func (uc *AIClassifyUseCase) Run(ctx context.Context, task ports.Task) error {
	doc, err := uc.repo.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.VirusScan == domain.ScanInfected {
		return nil
	}
	if doc.Status != domain.StatusAIProcessing {
		// The local classifier already settled this document.
		return nil
	}

	documentType, err := uc.classifier.ClassifyDocumentType(ctx, doc.ExtractedText)
	if err != nil {
		uc.log.Warn("external classification failed", "document_id", doc.ID, "error", err)
		documentType = ""
	}

	documentType = strings.ToLower(strings.TrimSpace(documentType))
	if documentType != "" {
		uc.autotag.attach(ctx, doc, documentType)
		uc.autotag.applyTemplate(ctx, doc, documentType)
		if err := uc.repo.AddMetadata(ctx, doc.ID, "ai_document_type", documentType); err != nil {
			uc.log.Warn("store ai document type failed", "document_id", doc.ID, "error", err)
		}
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("finalize ai classification: %w", err)
	}
	return nil
}
