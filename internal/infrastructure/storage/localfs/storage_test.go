package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_report.pdf", strings.NewReader("content")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(ctx, "doc-1_report.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(raw) != "content" {
		t.Fatalf("read %q, want %q", raw, "content")
	}
}

func TestAttachAndExists(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	exists, err := storage.Exists(ctx, "doc-1", "preview")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Fatalf("no derivative expected yet")
	}

	key, err := storage.Attach(ctx, "doc-1", "preview", []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if key == "" {
		t.Fatalf("expected derivative key")
	}

	exists, err = storage.Exists(ctx, "doc-1", "preview")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Fatalf("derivative must be found after Attach")
	}

	reader, err := storage.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open(derivative) error = %v", err)
	}
	reader.Close()
}

func TestOpenMissingKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "absent"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
