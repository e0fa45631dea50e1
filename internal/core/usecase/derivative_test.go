package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

func TestPreviewRunGeneratesAndStores(t *testing.T) {
	repo := newRepoFake(cleanDocument())
	storage := newStorageFake()
	storage.blobs["doc-1_report.pdf"] = []byte("%PDF-1.4")
	renderer := &rendererFake{preview: []byte{0xff, 0xd8, 0xff}}

	uc := NewPreviewUseCase(repo, storage, renderer, discardLogger())
	if err := uc.Run(context.Background(), ports.Task{Stage: ports.StagePreview, DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stored := storage.derivatives["doc-1/preview"]
	if !bytes.Equal(stored, renderer.preview) {
		t.Fatalf("preview not stored, got %v", stored)
	}
}

func TestPreviewRunIsIdempotent(t *testing.T) {
	repo := newRepoFake(cleanDocument())
	storage := newStorageFake()
	storage.derivatives["doc-1/preview"] = []byte("existing")
	renderer := &rendererFake{preview: []byte("fresh")}

	uc := NewPreviewUseCase(repo, storage, renderer, discardLogger())
	if err := uc.Run(context.Background(), ports.Task{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(storage.derivatives["doc-1/preview"]) != "existing" {
		t.Fatalf("existing preview must not be regenerated")
	}
}

func TestPreviewRunSkipsQuarantined(t *testing.T) {
	doc := cleanDocument()
	doc.Quarantined = true
	doc.VirusScan = domain.ScanInfected
	repo := newRepoFake(doc)
	storage := newStorageFake()

	uc := NewPreviewUseCase(repo, storage, &rendererFake{preview: []byte("x")}, discardLogger())
	if err := uc.Run(context.Background(), ports.Task{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(storage.derivatives) != 0 {
		t.Fatalf("quarantined documents must not get derivatives")
	}
}

func TestThumbnailDefersWhilePreviewPending(t *testing.T) {
	repo := newRepoFake(cleanDocument())
	storage := newStorageFake()
	queue := &queueFake{}

	uc := NewThumbnailUseCase(repo, storage, &rendererFake{thumbnail: []byte("t")}, queue, discardLogger())
	if err := uc.Run(context.Background(), ports.Task{Stage: ports.StageThumbnail, DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(storage.derivatives) != 0 {
		t.Fatalf("thumbnail must wait for the preview")
	}
	if len(queue.items) != 1 {
		t.Fatalf("expected a deferred retry, got %v", queue.items)
	}
	retry := queue.items[0]
	if retry.task.Stage != ports.StageThumbnail || retry.task.Attempt != 1 {
		t.Fatalf("unexpected retry task: %+v", retry.task)
	}
	if retry.delay != thumbnailRetryDelay {
		t.Fatalf("retry delay = %v, want %v", retry.delay, thumbnailRetryDelay)
	}
}

func TestThumbnailRendersAfterMaxWaits(t *testing.T) {
	repo := newRepoFake(cleanDocument())
	storage := newStorageFake()
	storage.blobs["doc-1_report.pdf"] = []byte("%PDF-1.4")
	queue := &queueFake{}

	uc := NewThumbnailUseCase(repo, storage, &rendererFake{thumbnail: []byte("t")}, queue, discardLogger())
	task := ports.Task{Stage: ports.StageThumbnail, DocumentID: "doc-1", Attempt: thumbnailMaxWaits}
	if err := uc.Run(context.Background(), task); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(queue.items) != 0 {
		t.Fatalf("waiting must stop after the attempt budget")
	}
	if string(storage.derivatives["doc-1/thumbnail"]) != "t" {
		t.Fatalf("thumbnail must be rendered from the source after max waits")
	}
}

func TestThumbnailRendersWhenPreviewReady(t *testing.T) {
	repo := newRepoFake(cleanDocument())
	storage := newStorageFake()
	storage.blobs["doc-1_report.pdf"] = []byte("%PDF-1.4")
	storage.derivatives["doc-1/preview"] = []byte("p")
	queue := &queueFake{}

	uc := NewThumbnailUseCase(repo, storage, &rendererFake{thumbnail: []byte("t")}, queue, discardLogger())
	if err := uc.Run(context.Background(), ports.Task{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(queue.items) != 0 {
		t.Fatalf("no deferral expected when the preview is ready")
	}
	if string(storage.derivatives["doc-1/thumbnail"]) != "t" {
		t.Fatalf("thumbnail not stored")
	}
}
