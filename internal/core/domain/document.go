package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusProcessing   ProcessingStatus = "processing"
	StatusAIProcessing ProcessingStatus = "ai_processing"
	StatusCompleted    ProcessingStatus = "completed"
	StatusFailed       ProcessingStatus = "failed"
)

type VirusScanStatus string

const (
	ScanUnscanned VirusScanStatus = "unscanned"
	ScanPending   VirusScanStatus = "pending"
	ScanClean     VirusScanStatus = "clean"
	ScanInfected  VirusScanStatus = "infected"
	ScanError     VirusScanStatus = "error"
)

type Document struct {
	ID              string           `json:"id"`
	OrganizationID  string           `json:"organization_id"`
	UploaderID      string           `json:"uploader_id"`
	UploaderName    string           `json:"uploader_name,omitempty"`
	Filename        string           `json:"filename"`
	MimeType        string           `json:"mime_type"`
	StoragePath     string           `json:"storage_path"`
	SizeBytes       int64            `json:"size_bytes"`
	ContentHash     string           `json:"content_hash,omitempty"`
	Status          ProcessingStatus `json:"status"`
	VirusScan       VirusScanStatus  `json:"virus_scan_status"`
	VirusScanResult string           `json:"virus_scan_result,omitempty"`
	Quarantined     bool             `json:"quarantined"`
	ExtractedText   string           `json:"extracted_text,omitempty"`
	OCRPerformed    bool             `json:"ocr_performed"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Processable reports whether the pipeline may be entered. Documents already
// in flight or finished are single-flight no-ops; infected documents are
// permanently locked.
func (d *Document) Processable() bool {
	if d.Status == StatusProcessing || d.Status == StatusCompleted {
		return false
	}
	return d.VirusScan != ScanInfected
}

// ScanResolved reports whether a virus scan already reached a terminal
// verdict, in which case the document must not be rescanned.
func (d *Document) ScanResolved() bool {
	return d.VirusScan == ScanClean || d.VirusScan == ScanInfected
}

// SafeToAccess gates downloads: infected or quarantined documents are never
// served.
func (d *Document) SafeToAccess() bool {
	return !d.Quarantined && d.VirusScan != ScanInfected
}

type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// MetadataTemplate is an organization-scoped field template applied after a
// document type has been inferred.
type MetadataTemplate struct {
	Name   string
	Fields []TemplateField
}

type TemplateField struct {
	Name     string
	Required bool
}

// FileFormat is the closed set of formats the extraction stage dispatches on.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatPDF
	FormatWord
	FormatExcel
	FormatCSV
	FormatText
	FormatImage
)

func (f FileFormat) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatWord:
		return "word"
	case FormatExcel:
		return "excel"
	case FormatCSV:
		return "csv"
	case FormatText:
		return "text"
	case FormatImage:
		return "image"
	default:
		return "unknown"
	}
}

// DetectFormat maps a declared MIME type, with the filename extension as a
// fallback, onto the closed format set.
func DetectFormat(mimeType, filename string) FileFormat {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(mt, "pdf"):
		return FormatPDF
	case strings.Contains(mt, "wordprocessingml"), strings.Contains(mt, "msword"), strings.Contains(mt, "opendocument.text"):
		return FormatWord
	case strings.Contains(mt, "spreadsheetml"), strings.Contains(mt, "ms-excel"), strings.Contains(mt, "opendocument.spreadsheet"):
		return FormatExcel
	case mt == "text/csv":
		return FormatCSV
	case strings.HasPrefix(mt, "text/"):
		return FormatText
	case strings.HasPrefix(mt, "image/"):
		return FormatImage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".doc", ".docx", ".odt", ".rtf":
		return FormatWord
	case ".xls", ".xlsx", ".ods":
		return FormatExcel
	case ".csv":
		return FormatCSV
	case ".txt", ".md", ".log":
		return FormatText
	case ".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".gif":
		return FormatImage
	}
	return FormatUnknown
}

// NeedsOCR reports whether the document should be routed through the OCR
// stage: images always, PDFs only when direct extraction produced nothing.
// OCR runs at most once per document.
func (d *Document) NeedsOCR() bool {
	if d.OCRPerformed {
		return false
	}
	switch DetectFormat(d.MimeType, d.Filename) {
	case FormatImage:
		return true
	case FormatPDF:
		return strings.TrimSpace(d.ExtractedText) == ""
	default:
		return false
	}
}

// FileTypeTag returns the coarse tag applied from the MIME type, or "" when
// none applies.
func (d *Document) FileTypeTag() string {
	mt := strings.ToLower(d.MimeType)
	switch {
	case strings.Contains(mt, "pdf"):
		return "pdf"
	case strings.Contains(mt, "word"):
		return "word"
	case strings.Contains(mt, "excel"), strings.Contains(mt, "spreadsheet"):
		return "excel"
	case strings.HasPrefix(mt, "image/"):
		return "image"
	default:
		return ""
	}
}
