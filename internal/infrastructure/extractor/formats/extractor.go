// Package formats converts stored binary documents into plain text,
// dispatching on the detected file format.
package formats

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
	// converter is the headless office binary used for word-processor
	// formats, typically "soffice".
	converter string
}

func New(storage ports.ObjectStorage, converter string) *Extractor {
	if converter == "" {
		converter = "soffice"
	}
	return &Extractor{storage: storage, converter: converter}
}

func (e *Extractor) ExtractText(ctx context.Context, doc *domain.Document) (domain.ExtractedContent, error) {
	format := domain.DetectFormat(doc.MimeType, doc.Filename)
	if format == domain.FormatImage || format == domain.FormatUnknown {
		// Images go through OCR instead; unknown formats yield no text.
		return domain.ExtractedContent{Method: "none"}, nil
	}

	raw, err := e.read(ctx, doc.StoragePath)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	switch format {
	case domain.FormatPDF:
		return extractPDF(raw)
	case domain.FormatExcel:
		return extractExcel(raw)
	case domain.FormatCSV:
		return extractCSV(raw)
	case domain.FormatText:
		return extractText(raw)
	case domain.FormatWord:
		return e.extractWord(ctx, raw, doc.Filename)
	default:
		return domain.ExtractedContent{Method: "none"}, nil
	}
}

func (e *Extractor) read(ctx context.Context, key string) ([]byte, error) {
	reader, err := e.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return raw, nil
}
