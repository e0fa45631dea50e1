package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, upload DocumentUpload, body io.Reader) (*domain.Document, error)
}

// DocumentUpload carries the caller-declared attributes of one upload.
type DocumentUpload struct {
	Filename       string
	MimeType       string
	OrganizationID string
	UploaderID     string
	UploaderName   string
}

// DocumentProcessor is the inbound contract for the asynchronous pipeline.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// StageRunner executes one enqueued pipeline stage for one document.
type StageRunner interface {
	Run(ctx context.Context, task Task) error
}

// ComplianceChecker is the inbound contract for on-demand compliance
// scoring. It is not part of the mandatory pipeline.
type ComplianceChecker interface {
	Check(ctx context.Context, documentID string) (*domain.ComplianceResult, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}
