package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docstream/internal/core/compliance"
	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// ComplianceUseCase scores documents against the regulatory rule set on
// demand. Every invocation recomputes the full result and replaces the
// stored one.
type ComplianceUseCase struct {
	repo   ports.DocumentRepository
	scorer *compliance.Scorer
	log    *slog.Logger
}

func NewComplianceUseCase(repo ports.DocumentRepository, scorer *compliance.Scorer, log *slog.Logger) *ComplianceUseCase {
	return &ComplianceUseCase{repo: repo, scorer: scorer, log: log}
}

func (uc *ComplianceUseCase) Check(ctx context.Context, documentID string) (*domain.ComplianceResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if !doc.SafeToAccess() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compliance check", fmt.Errorf("document %s is quarantined", documentID))
	}

	content, err := uc.assembleContent(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := uc.scorer.Score(content)
	if err := uc.repo.SaveComplianceResult(ctx, documentID, result); err != nil {
		return nil, fmt.Errorf("store compliance result: %w", err)
	}

	tag := domain.Tag{
		Name:  fmt.Sprintf("compliance_%d", result.Score),
		Color: domain.ScoreTagColor(result.Score),
	}
	if err := uc.repo.AttachTag(ctx, documentID, tag, doc.OrganizationID); err != nil {
		uc.log.Warn("attach compliance tag failed", "document_id", documentID, "error", err)
	}

	uc.log.Info("compliance check finished",
		"document_id", documentID, "score", result.Score, "violations", len(result.Violations))
	return &result, nil
}

// assembleContent builds the scored corpus from the extracted text, the
// filename and every metadata pair, so checks also see values that never
// appear in the body.
func (uc *ComplianceUseCase) assembleContent(ctx context.Context, doc *domain.Document) (string, error) {
	entries, err := uc.repo.ListMetadata(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("list document metadata: %w", err)
	}

	var b strings.Builder
	b.WriteString(doc.ExtractedText)
	b.WriteString("\n")
	b.WriteString(doc.Filename)
	for _, entry := range entries {
		b.WriteString("\n")
		b.WriteString(entry.Key)
		b.WriteString(": ")
		b.WriteString(entry.Value)
	}
	return b.String(), nil
}

// OrganizationReport aggregates the compliance posture of a document set.
type OrganizationReport struct {
	Documents    int            `json:"documents"`
	AverageScore int            `json:"average_score"`
	Compliant    int            `json:"compliant"`
	BySeverity   map[string]int `json:"by_severity"`
	WorstScoring []ReportEntry  `json:"worst_scoring"`
}

type ReportEntry struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Score      int    `json:"score"`
}

// Report runs the check concurrently over a document set and aggregates the
// outcomes. Individual document failures are logged and skipped rather than
// failing the whole report.
func (uc *ComplianceUseCase) Report(ctx context.Context, documentIDs []string) (*OrganizationReport, error) {
	var (
		mu      sync.Mutex
		entries []ReportEntry
		report  = &OrganizationReport{BySeverity: map[string]int{}}
		total   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range documentIDs {
		g.Go(func() error {
			doc, err := uc.repo.GetByID(gctx, id)
			if err != nil {
				uc.log.Warn("report skipping document", "document_id", id, "error", err)
				return nil
			}
			result, err := uc.Check(gctx, id)
			if err != nil {
				uc.log.Warn("report skipping document", "document_id", id, "error", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			report.Documents++
			total += result.Score
			if result.Compliant {
				report.Compliant++
			}
			for _, v := range result.Violations {
				report.BySeverity[string(v.Severity)]++
			}
			entries = append(entries, ReportEntry{DocumentID: id, Filename: doc.Filename, Score: result.Score})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.Documents > 0 {
		report.AverageScore = total / report.Documents
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })
	if len(entries) > 5 {
		entries = entries[:5]
	}
	report.WorstScoring = entries
	return report, nil
}
