package imagemagick

import (
	"testing"

	"github.com/kirillkom/docstream/internal/core/domain"
)

func TestRenderSource(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		format domain.FileFormat
		want   string
	}{
		{"pdf first page", "/tmp/report.pdf", domain.FormatPDF, "/tmp/report.pdf[0]"},
		{"image untouched", "/tmp/scan.png", domain.FormatImage, "/tmp/scan.png"},
		{"word untouched", "/tmp/letter.docx", domain.FormatWord, "/tmp/letter.docx"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderSource(tc.path, tc.format); got != tc.want {
				t.Fatalf("renderSource() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPlaceholderSource(t *testing.T) {
	if got := placeholderSource("/tmp/letter.docx"); got != "label:DOCX" {
		t.Fatalf("placeholderSource() = %q", got)
	}
	if got := placeholderSource("/tmp/noext"); got != "label:DOC" {
		t.Fatalf("placeholderSource() fallback = %q", got)
	}
}

func TestNewAppliesOptions(t *testing.T) {
	r := New(WithBinary("magick"))
	if r.binary != "magick" {
		t.Fatalf("binary = %q", r.binary)
	}
	if r.timeout != defaultTimeout {
		t.Fatalf("timeout = %v", r.timeout)
	}
}
