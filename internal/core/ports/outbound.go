package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// DocumentRepository persists and reads document state, metadata entries,
// tags and compliance results.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)

	// ClaimForProcessing is the single-flight guard: it transitions the
	// document to processing only when it is not already processing or
	// completed, reporting whether the claim succeeded.
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error

	SaveExtractedText(ctx context.Context, id, text, method string) error
	MarkOCRComplete(ctx context.Context, id, appendedText string) error
	SetVirusScan(ctx context.Context, id string, status domain.VirusScanStatus, result string, quarantine bool) error

	// AddMetadata writes a (key, value) pair unless the key is already
	// present on the document, so stage re-runs never duplicate entries.
	AddMetadata(ctx context.Context, id, key, value string) error
	GetMetadata(ctx context.Context, id, key string) (string, bool, error)
	ListMetadata(ctx context.Context, id string) ([]domain.MetadataEntry, error)

	// AttachTag finds or creates the tag scoped to the organization and
	// attaches it unless already attached.
	AttachTag(ctx context.Context, id string, tag domain.Tag, organizationID string) error
	ListTags(ctx context.Context, id string) ([]string, error)

	GetTemplate(ctx context.Context, name, organizationID string) (*domain.MetadataTemplate, bool, error)
	SaveComplianceResult(ctx context.Context, id string, result domain.ComplianceResult) error
}

// ObjectStorage stores source documents and their derivative artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Attach stores a derivative (preview, thumbnail) for a document and
	// returns the storage key.
	Attach(ctx context.Context, documentID, kind string, data []byte, mimeType string) (string, error)
	Exists(ctx context.Context, documentID, kind string) (bool, error)
}

// ScanOutcome is the verdict of one malware scan.
type ScanOutcome struct {
	Status    domain.VirusScanStatus
	Signature string
	// Reason carries the failure detail when Status is ScanError.
	Reason string
}

// ScanEngine streams raw bytes to an external malware scanner.
type ScanEngine interface {
	Scan(ctx context.Context, data io.Reader) (ScanOutcome, error)
}

// TextExtractor converts a stored binary document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc *domain.Document) (domain.ExtractedContent, error)
}

// OCREngine recognizes text in an image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath, languageHint string) (string, error)
}

// DerivativeRenderer produces visual artifacts from a source file.
type DerivativeRenderer interface {
	Preview(ctx context.Context, srcPath string, format domain.FileFormat) ([]byte, error)
	Thumbnail(ctx context.Context, srcPath string, format domain.FileFormat) ([]byte, error)
}

// Lane names the work queues stages are scheduled on.
type Lane string

const (
	LaneDocumentProcessing Lane = "document_processing"
	LaneOCRProcessing      Lane = "ocr_processing"
	LaneAIProcessing       Lane = "ai_processing"
	LaneDefault            Lane = "default"
)

// Stage identifiers carried in queued tasks.
const (
	StageProcess    = "process"
	StageMetadata   = "metadata"
	StageAutoTag    = "autotag"
	StageOCR        = "ocr"
	StagePreview    = "preview"
	StageThumbnail  = "thumbnail"
	StageAIClassify = "ai_classify"
)

// Task is one independently schedulable unit of pipeline work.
type Task struct {
	Stage      string `json:"stage"`
	DocumentID string `json:"document_id"`
	Attempt    int    `json:"attempt"`
}

// TaskQueue schedules stage tasks on named lanes, now or after a delay.
type TaskQueue interface {
	Enqueue(ctx context.Context, lane Lane, task Task) error
	EnqueueAfter(ctx context.Context, lane Lane, task Task, delay time.Duration) error
	Subscribe(ctx context.Context, lane Lane, handler func(context.Context, Task) error) error
}

// SecurityEvent describes a detected infection for out-of-band notification.
type SecurityEvent struct {
	DocumentID     string `json:"document_id"`
	OrganizationID string `json:"organization_id"`
	UploaderID     string `json:"uploader_id"`
	Signature      string `json:"signature"`
}

// Notifier is a fire-and-forget sink for security events; delivery to
// administrators and the uploader is the collaborator's concern.
type Notifier interface {
	NotifyVirusDetected(ctx context.Context, event SecurityEvent) error
}

// AIClassifier is the slower external classification fallback used when the
// local keyword classifier finds no document type. It returns "" when the
// model cannot decide either.
type AIClassifier interface {
	ClassifyDocumentType(ctx context.Context, text string) (string, error)
}

// SearchIndexer refreshes the search index for a document, best effort.
type SearchIndexer interface {
	Refresh(ctx context.Context, documentID string) error
}
