package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/classify"
	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// AutoTagUseCase applies the keyword classifier to extracted text, attaches
// the resulting tags idempotently and fills organization metadata templates.
// When local classification finds no document type, the document moves to
// ai_processing and the slower external classifier takes over on its own
// lane; a local hit short-circuits the external call entirely.
type AutoTagUseCase struct {
	repo       ports.DocumentRepository
	classifier *classify.Classifier
	queue      ports.TaskQueue
	log        *slog.Logger
	now        func() time.Time
}

func NewAutoTagUseCase(
	repo ports.DocumentRepository,
	classifier *classify.Classifier,
	queue ports.TaskQueue,
	log *slog.Logger,
) *AutoTagUseCase {
	return &AutoTagUseCase{
		repo:       repo,
		classifier: classifier,
		queue:      queue,
		log:        log,
		now:        time.Now,
	}
}

func (uc *AutoTagUseCase) Run(ctx context.Context, task ports.Task) error {
	doc, err := uc.repo.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.VirusScan == domain.ScanInfected {
		return nil
	}
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return nil
	}

	result := uc.classifier.Classify(doc.ExtractedText)

	for _, tag := range result.Tags() {
		uc.attach(ctx, doc, tag)
	}
	for _, tag := range uc.metadataTags(ctx, doc) {
		uc.attach(ctx, doc, tag)
	}

	if result.DocumentType != "" {
		uc.applyTemplate(ctx, doc, result.DocumentType)
		return nil
	}

	// No local hit: hand over to the external classification fallback.
	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusAIProcessing, ""); err != nil {
		uc.log.Warn("set ai_processing status failed", "document_id", doc.ID, "error", err)
	}
	aiTask := ports.Task{Stage: ports.StageAIClassify, DocumentID: doc.ID}
	if err := uc.queue.Enqueue(ctx, ports.LaneAIProcessing, aiTask); err != nil {
		return fmt.Errorf("enqueue ai classification: %w", err)
	}
	return nil
}

// metadataTags derives tags from previously extracted metadata: year and
// quarter from the document date, high_value above the fixed threshold, and
// a coarse file-type tag.
func (uc *AutoTagUseCase) metadataTags(ctx context.Context, doc *domain.Document) []string {
	var tags []string

	if value, ok := uc.metadata(ctx, doc.ID, "document_date"); ok {
		if date, err := time.Parse("2006-01-02", value); err == nil {
			tags = append(tags, strconv.Itoa(date.Year()))
			tags = append(tags, fmt.Sprintf("q%d", (int(date.Month())-1)/3+1))
		}
	}

	if value, ok := uc.metadata(ctx, doc.ID, "total_amount"); ok {
		if amount, err := strconv.ParseFloat(value, 64); err == nil && amount > classify.HighValueThreshold {
			tags = append(tags, "high_value")
		}
	}

	if tag := doc.FileTypeTag(); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

func (uc *AutoTagUseCase) applyTemplate(ctx context.Context, doc *domain.Document, documentType string) {
	templateName := classify.TemplateName(documentType)
	if templateName == "" {
		return
	}

	template, found, err := uc.repo.GetTemplate(ctx, templateName, doc.OrganizationID)
	if err != nil {
		uc.log.Warn("load metadata template failed", "document_id", doc.ID, "template", templateName, "error", err)
		return
	}
	if !found {
		return
	}

	for _, field := range template.Fields {
		if _, exists := uc.metadata(ctx, doc.ID, field.Name); exists {
			continue
		}
		value := uc.deriveFieldValue(ctx, doc, field.Name)
		if value == "" && !field.Required {
			continue
		}
		if err := uc.repo.AddMetadata(ctx, doc.ID, field.Name, value); err != nil {
			uc.log.Warn("apply template field failed", "document_id", doc.ID, "field", field.Name, "error", err)
		}
	}
}

func (uc *AutoTagUseCase) deriveFieldValue(ctx context.Context, doc *domain.Document, fieldName string) string {
	switch strings.ToLower(fieldName) {
	case "author", "auteur":
		return doc.UploaderName
	case "date":
		if value, ok := uc.metadata(ctx, doc.ID, "document_date"); ok {
			return value
		}
		return uc.now().UTC().Format("2006-01-02")
	case "status":
		return "Draft"
	default:
		return ""
	}
}

func (uc *AutoTagUseCase) attach(ctx context.Context, doc *domain.Document, name string) {
	tag := domain.Tag{Name: strings.ToLower(name)}
	if err := uc.repo.AttachTag(ctx, doc.ID, tag, doc.OrganizationID); err != nil {
		uc.log.Warn("attach tag failed", "document_id", doc.ID, "tag", tag.Name, "error", err)
	}
}

func (uc *AutoTagUseCase) metadata(ctx context.Context, id, key string) (string, bool) {
	value, found, err := uc.repo.GetMetadata(ctx, id, key)
	if err != nil {
		uc.log.Warn("read metadata entry failed", "document_id", id, "key", key, "error", err)
		return "", false
	}
	return value, found
}
