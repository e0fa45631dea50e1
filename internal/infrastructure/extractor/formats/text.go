package formats

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docstream/internal/core/domain"
)

func extractText(raw []byte) (domain.ExtractedContent, error) {
	if !utf8.Valid(raw) {
		return domain.ExtractedContent{}, fmt.Errorf("invalid utf-8 content")
	}
	return domain.ExtractedContent{
		Text:   strings.TrimSpace(string(raw)),
		Method: "text",
	}, nil
}
