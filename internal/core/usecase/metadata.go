package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/extract"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// MetadataExtractionUseCase projects extracted entities into metadata
// entries. Writes are presence-checked by the repository, so a stage re-run
// never duplicates entries.
type MetadataExtractionUseCase struct {
	repo ports.DocumentRepository
	log  *slog.Logger
}

func NewMetadataExtractionUseCase(repo ports.DocumentRepository, log *slog.Logger) *MetadataExtractionUseCase {
	return &MetadataExtractionUseCase{repo: repo, log: log}
}

func (uc *MetadataExtractionUseCase) Run(ctx context.Context, task ports.Task) error {
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

	uc.storeFileMetadata(ctx, doc)
	uc.storeContentStats(ctx, doc)

	result := extract.Extract(doc.ExtractedText)
	uc.storeDates(ctx, doc.ID, result)
	uc.storeAmounts(ctx, doc.ID, result)
	uc.storeReferences(ctx, doc.ID, result)
	uc.storeContacts(ctx, doc.ID, result)
	return nil
}

func (uc *MetadataExtractionUseCase) storeFileMetadata(ctx context.Context, doc *domain.Document) {
	uc.add(ctx, doc.ID, "file_name", doc.Filename)
	uc.add(ctx, doc.ID, "content_type", doc.MimeType)
	if doc.SizeBytes > 0 {
		uc.add(ctx, doc.ID, "file_size", strconv.FormatInt(doc.SizeBytes, 10))
	}
	if doc.ContentHash != "" {
		uc.add(ctx, doc.ID, "content_hash", doc.ContentHash)
	}
}

func (uc *MetadataExtractionUseCase) storeContentStats(ctx context.Context, doc *domain.Document) {
	stats := extract.Stats(doc.ExtractedText)
	uc.add(ctx, doc.ID, "character_count", strconv.Itoa(stats.Characters))
	uc.add(ctx, doc.ID, "line_count", strconv.Itoa(stats.Lines))
	uc.add(ctx, doc.ID, "paragraph_count", strconv.Itoa(stats.Paragraphs))
}

func (uc *MetadataExtractionUseCase) storeDates(ctx context.Context, id string, result domain.ExtractionResult) {
	const layout = "2006-01-02"
	if result.EarliestDate != nil {
		uc.add(ctx, id, "earliest_date", result.EarliestDate.Format(layout))
	}
	if result.LatestDate != nil {
		uc.add(ctx, id, "latest_date", result.LatestDate.Format(layout))
	}
	if result.DocumentDate != nil {
		uc.add(ctx, id, "document_date", result.DocumentDate.Format(layout))
	}
}

func (uc *MetadataExtractionUseCase) storeAmounts(ctx context.Context, id string, result domain.ExtractionResult) {
	if result.AmountCount == 0 {
		return
	}
	uc.add(ctx, id, "total_amount", formatAmount(result.AmountTotal))
	uc.add(ctx, id, "min_amount", formatAmount(result.AmountMin))
	uc.add(ctx, id, "max_amount", formatAmount(result.AmountMax))
	uc.add(ctx, id, "amount_count", strconv.Itoa(result.AmountCount))
}

func (uc *MetadataExtractionUseCase) storeReferences(ctx context.Context, id string, result domain.ExtractionResult) {
	for key, matches := range result.References {
		if len(matches) == 0 {
			continue
		}
		uc.add(ctx, id, key, matches[0])
		if len(matches) > 1 {
			uc.add(ctx, id, "all_"+key+"s", strings.Join(matches, ", "))
		}
	}
}

func (uc *MetadataExtractionUseCase) storeContacts(ctx context.Context, id string, result domain.ExtractionResult) {
	if len(result.Emails) > 0 {
		uc.add(ctx, id, "emails", strings.Join(result.Emails, ", "))
		uc.add(ctx, id, "primary_email", result.Emails[0])
	}
	if len(result.Phones) > 0 {
		uc.add(ctx, id, "phone_numbers", strings.Join(result.Phones, ", "))
	}
}

func (uc *MetadataExtractionUseCase) add(ctx context.Context, id, key, value string) {
	if err := uc.repo.AddMetadata(ctx, id, key, value); err != nil {
		uc.log.Warn("store metadata entry failed", "document_id", id, "key", key, "error", err)
	}
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
