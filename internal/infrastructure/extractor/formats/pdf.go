package formats

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// extractPDF walks the document page by page. Encrypted files yield an
// explicit diagnostic and no text rather than a hard failure.
func extractPDF(raw []byte) (domain.ExtractedContent, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypted") {
			return domain.ExtractedContent{Method: "pdf", Diagnostic: "encrypted"}, nil
		}
		return domain.ExtractedContent{}, err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page must not discard the rest.
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return domain.ExtractedContent{
		Text:   strings.TrimSpace(strings.Join(pages, "\n\n")),
		Method: "pdf",
	}, nil
}
