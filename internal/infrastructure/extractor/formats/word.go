package formats

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// extractWord converts a word-processor document to plain text through the
// headless office converter. The temp workspace is removed regardless of
// outcome.
func (e *Extractor) extractWord(ctx context.Context, raw []byte, filename string) (domain.ExtractedContent, error) {
	dir, err := os.MkdirTemp("", "docstream-convert-")
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("create convert workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(src, raw, 0o600); err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("write convert input: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.converter,
		"--headless", "--convert-to", "txt:Text", "--outdir", dir, src)
	if output, err := cmd.CombinedOutput(); err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("convert document: %w: %s", err, strings.TrimSpace(string(output)))
	}

	converted := strings.TrimSuffix(src, filepath.Ext(src)) + ".txt"
	text, err := os.ReadFile(converted)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("read converted output: %w", err)
	}

	return domain.ExtractedContent{
		Text:   strings.TrimSpace(string(text)),
		Method: "office",
	}, nil
}
