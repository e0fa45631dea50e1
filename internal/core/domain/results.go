package domain

import "time"

// ExtractedContent is the output of the content-extraction stage. Empty text
// with a diagnostic is a valid outcome, not an error.
type ExtractedContent struct {
	Text       string
	Method     string
	Diagnostic string
}

// ExtractionResult is the transient bag of candidate entities found in one
// text input. It is never persisted directly; the metadata-extraction stage
// projects it into metadata entries.
type ExtractionResult struct {
	DocumentDate *time.Time
	EarliestDate *time.Time
	LatestDate   *time.Time

	AmountCount int
	AmountTotal float64
	AmountMin   float64
	AmountMax   float64

	// References maps a category key (invoice_number, contract_number, ...)
	// to all distinct label-prefixed matches, first match canonical.
	References map[string][]string

	Emails []string
	Phones []string
}

// ClassificationResult is the transient output of the keyword classifier,
// consumed by the tag-application step.
type ClassificationResult struct {
	DocumentType string
	Topics       []string
	Urgent       bool
	Confidential bool
}

// Tags flattens the result into the suggested tag set, in a stable order.
func (c ClassificationResult) Tags() []string {
	var tags []string
	if c.DocumentType != "" {
		tags = append(tags, c.DocumentType)
	}
	tags = append(tags, c.Topics...)
	if c.Urgent {
		tags = append(tags, "urgent")
	}
	if c.Confidential {
		tags = append(tags, "confidentiel")
	}
	return tags
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Violation struct {
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Details     string   `json:"details,omitempty"`
	Remediation string   `json:"remediation"`
}

type CategoryResult struct {
	Score      int         `json:"score"`
	Violations []Violation `json:"violations"`
	Passed     bool        `json:"passed"`
}

// ComplianceResult is recomputed fully on every invocation and overwrites
// the previous stored result on the document.
type ComplianceResult struct {
	Score           int                       `json:"score"`
	Compliant       bool                      `json:"compliant"`
	Violations      []Violation               `json:"violations"`
	Checks          map[string]CategoryResult `json:"checks"`
	Recommendations []string                  `json:"recommendations"`
	CheckedAt       time.Time                 `json:"checked_at"`
}

// ScoreTagColor maps a compliance score onto the colored tag band.
func ScoreTagColor(score int) string {
	switch {
	case score >= 80:
		return "green"
	case score >= 60:
		return "orange"
	default:
		return "red"
	}
}
