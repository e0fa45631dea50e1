// Package tesseract runs text recognition over rendered document pages
// through the tesseract command line tool.
package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

type Engine struct {
	binary  string
	timeout time.Duration
}

type Option func(*Engine)

func WithBinary(path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.binary = path
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{binary: "tesseract", timeout: defaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize extracts text from the image at imagePath. languageHint is a
// tesseract traineddata code such as "fra" or "fra+eng"; when empty the
// engine default applies.
func (e *Engine) Recognize(ctx context.Context, imagePath, languageHint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := buildArgs(imagePath, languageHint)
	out, err := exec.CommandContext(ctx, e.binary, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(string(ee.Stderr)), err)
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func buildArgs(imagePath, languageHint string) []string {
	// "stdout" as the output base makes tesseract print recognized text
	// instead of writing a sidecar file.
	args := []string{imagePath, "stdout"}
	if languageHint != "" {
		args = append(args, "-l", languageHint)
	}
	return args
}
