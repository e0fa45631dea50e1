package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docstream/internal/core/classify"
	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

func newAIClassify(repo *repoFake, classifier *aiClassifierFake) *AIClassifyUseCase {
	autotag := NewAutoTagUseCase(repo, classify.New(classify.DefaultRules()), &queueFake{}, discardLogger())
	return NewAIClassifyUseCase(repo, classifier, autotag, discardLogger())
}

func aiProcessingDocument() *domain.Document {
	doc := cleanDocument()
	doc.Status = domain.StatusAIProcessing
	doc.ExtractedText = "quelques notes sans type évident"
	return doc
}

func TestAIClassifyAppliesExternalType(t *testing.T) {
	repo := newRepoFake(aiProcessingDocument())
	repo.template = &domain.MetadataTemplate{
		Name:   "Invoice Template",
		Fields: []domain.TemplateField{{Name: "Status"}},
	}
	classifier := &aiClassifierFake{documentType: "Facture"}

	uc := newAIClassify(repo, classifier)
	if err := uc.Run(context.Background(), ports.Task{Stage: ports.StageAIClassify, DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !containsTag(repo.tagNames(), "facture") {
		t.Fatalf("expected normalized type tag, got %v", repo.tagNames())
	}
	if repo.metadata["ai_document_type"] != "facture" {
		t.Fatalf("expected ai_document_type metadata, got %v", repo.metadata)
	}
	if repo.metadata["Status"] != "Draft" {
		t.Fatalf("template must be applied for the external type, got %v", repo.metadata)
	}
	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusCompleted {
		t.Fatalf("classification must finalize the document, got %+v", repo.statusCalls)
	}
}

func TestAIClassifyFailureStillCompletes(t *testing.T) {
	repo := newRepoFake(aiProcessingDocument())
	classifier := &aiClassifierFake{err: errors.New("model timeout")}

	uc := newAIClassify(repo, classifier)
	if err := uc.Run(context.Background(), ports.Task{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("classifier outage must not fail the stage, got %v", err)
	}

	if len(repo.tags) != 0 {
		t.Fatalf("no tags expected on failure, got %v", repo.tagNames())
	}
	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusCompleted {
		t.Fatalf("document must still complete, got %+v", repo.statusCalls)
	}
}

func TestAIClassifySkipsSettledDocument(t *testing.T) {
	doc := aiProcessingDocument()
	doc.Status = domain.StatusCompleted
	repo := newRepoFake(doc)
	classifier := &aiClassifierFake{documentType: "facture"}

	uc := newAIClassify(repo, classifier)
	if err := uc.Run(context.Background(), ports.Task{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if classifier.calls != 0 {
		t.Fatalf("settled documents must not be reclassified")
	}
}
