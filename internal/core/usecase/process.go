package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// ProcessDocumentUseCase is the pipeline orchestrator: it gates on the virus
// scan, runs content extraction synchronously, fans the remaining stages out
// onto the task queue and decides completion.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	scanner   ports.ScanEngine
	extractor ports.TextExtractor
	queue     ports.TaskQueue
	notifier  ports.Notifier
	indexer   ports.SearchIndexer
	log       *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	scanner ports.ScanEngine,
	extractor ports.TextExtractor,
	queue ports.TaskQueue,
	notifier ports.Notifier,
	indexer ports.SearchIndexer,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		storage:   storage,
		scanner:   scanner,
		extractor: extractor,
		queue:     queue,
		notifier:  notifier,
		indexer:   indexer,
		log:       log,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if !doc.Processable() {
		uc.log.Info("skipping document, not processable",
			"document_id", documentID, "status", doc.Status, "virus_scan", doc.VirusScan)
		return nil
	}

	// Single-flight: only one invocation may move the document into
	// processing; concurrent callers observe a failed claim and no-op.
	claimed, err := uc.repo.ClaimForProcessing(ctx, documentID)
	if err != nil {
		return fmt.Errorf("claim document for processing: %w", err)
	}
	if !claimed {
		uc.log.Info("skipping document, already claimed", "document_id", documentID)
		return nil
	}
	doc.Status = domain.StatusProcessing

	if err := uc.runPipeline(ctx, doc); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		if domain.IsKind(err, domain.ErrInfected) {
			// Non-retryable: the document is permanently locked.
			uc.log.Warn("document locked after infection", "document_id", documentID)
			return nil
		}
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, doc *domain.Document) error {
	outcome := uc.runVirusScan(ctx, doc)
	if outcome.Status == domain.ScanInfected {
		return uc.handleInfection(ctx, doc, outcome.Signature)
	}

	uc.runContentExtraction(ctx, doc)

	if err := uc.scheduleAsyncStages(ctx, doc); err != nil {
		return err
	}

	ocrPending := doc.NeedsOCR()
	if ocrPending {
		task := ports.Task{Stage: ports.StageOCR, DocumentID: doc.ID}
		if err := uc.queue.Enqueue(ctx, ports.LaneOCRProcessing, task); err != nil {
			return fmt.Errorf("enqueue ocr stage: %w", err)
		}
	} else {
		// Completion is deferred to the OCR stage when OCR is pending.
		if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, ""); err != nil {
			return fmt.Errorf("set status=completed: %w", err)
		}
	}

	if err := uc.indexer.Refresh(ctx, doc.ID); err != nil {
		uc.log.Warn("search index refresh failed", "document_id", doc.ID, "error", err)
	}
	return nil
}

// runVirusScan applies exactly-once semantics and the fail-open policy: a
// terminal verdict is never recomputed, and scanner outages degrade to a
// recorded error without blocking the pipeline.
func (uc *ProcessDocumentUseCase) runVirusScan(ctx context.Context, doc *domain.Document) ports.ScanOutcome {
	if doc.ScanResolved() {
		return ports.ScanOutcome{Status: doc.VirusScan, Signature: doc.VirusScanResult}
	}

	if err := uc.repo.SetVirusScan(ctx, doc.ID, domain.ScanPending, "", false); err != nil {
		uc.log.Warn("mark scan pending failed", "document_id", doc.ID, "error", err)
	}

	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return uc.recordScanError(ctx, doc, fmt.Sprintf("open source document: %v", err))
	}
	defer reader.Close()

	outcome, err := uc.scanner.Scan(ctx, reader)
	if err != nil {
		return uc.recordScanError(ctx, doc, err.Error())
	}

	switch outcome.Status {
	case domain.ScanClean:
		if err := uc.repo.SetVirusScan(ctx, doc.ID, domain.ScanClean, "", false); err != nil {
			uc.log.Warn("mark scan clean failed", "document_id", doc.ID, "error", err)
		}
		doc.VirusScan = domain.ScanClean
	case domain.ScanInfected:
		doc.VirusScan = domain.ScanInfected
		doc.VirusScanResult = outcome.Signature
	case domain.ScanError:
		return uc.recordScanError(ctx, doc, outcome.Reason)
	}
	return outcome
}

func (uc *ProcessDocumentUseCase) recordScanError(ctx context.Context, doc *domain.Document, reason string) ports.ScanOutcome {
	uc.log.Warn("virus scan unavailable, continuing fail-open", "document_id", doc.ID, "reason", reason)
	if err := uc.repo.SetVirusScan(ctx, doc.ID, domain.ScanError, reason, false); err != nil {
		uc.log.Warn("mark scan error failed", "document_id", doc.ID, "error", err)
	}
	doc.VirusScan = domain.ScanError
	return ports.ScanOutcome{Status: domain.ScanError, Reason: reason}
}

func (uc *ProcessDocumentUseCase) handleInfection(ctx context.Context, doc *domain.Document, signature string) error {
	if err := uc.repo.SetVirusScan(ctx, doc.ID, domain.ScanInfected, signature, true); err != nil {
		return fmt.Errorf("quarantine infected document: %w", err)
	}
	if err := uc.repo.AddMetadata(ctx, doc.ID, "virus_signature", signature); err != nil {
		uc.log.Warn("store virus signature failed", "document_id", doc.ID, "error", err)
	}

	event := ports.SecurityEvent{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
		UploaderID:     doc.UploaderID,
		Signature:      signature,
	}
	if err := uc.notifier.NotifyVirusDetected(ctx, event); err != nil {
		uc.log.Warn("virus notification failed", "document_id", doc.ID, "error", err)
	}

	return domain.WrapError(domain.ErrInfected, "virus scan", errors.New(signature))
}

// runContentExtraction never aborts the pipeline: failures leave a
// diagnostic metadata entry and downstream stages receive empty text.
func (uc *ProcessDocumentUseCase) runContentExtraction(ctx context.Context, doc *domain.Document) {
	content, err := uc.extractor.ExtractText(ctx, doc)
	if err != nil {
		uc.log.Warn("content extraction failed", "document_id", doc.ID, "error", err)
		if metaErr := uc.repo.AddMetadata(ctx, doc.ID, "extraction_error", err.Error()); metaErr != nil {
			uc.log.Warn("store extraction diagnostic failed", "document_id", doc.ID, "error", metaErr)
		}
		content = domain.ExtractedContent{}
	} else if content.Diagnostic != "" {
		if metaErr := uc.repo.AddMetadata(ctx, doc.ID, "extraction_diagnostic", content.Diagnostic); metaErr != nil {
			uc.log.Warn("store extraction diagnostic failed", "document_id", doc.ID, "error", metaErr)
		}
	}

	if err := uc.repo.SaveExtractedText(ctx, doc.ID, content.Text, content.Method); err != nil {
		uc.log.Warn("persist extracted text failed", "document_id", doc.ID, "error", err)
	}
	doc.ExtractedText = content.Text
}

// scheduleAsyncStages enqueues the independently failing stages. Derivative
// generation runs concurrently with text-dependent stages; the latter are
// only scheduled after extraction produced its (possibly empty) result.
func (uc *ProcessDocumentUseCase) scheduleAsyncStages(ctx context.Context, doc *domain.Document) error {
	stages := []string{ports.StagePreview, ports.StageThumbnail, ports.StageMetadata, ports.StageAutoTag}
	for _, stage := range stages {
		task := ports.Task{Stage: stage, DocumentID: doc.ID}
		if err := uc.queue.Enqueue(ctx, ports.LaneDocumentProcessing, task); err != nil {
			return fmt.Errorf("enqueue %s stage: %w", stage, err)
		}
	}
	return nil
}
