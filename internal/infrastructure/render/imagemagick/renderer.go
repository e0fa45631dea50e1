// Package imagemagick renders preview and thumbnail images with the
// ImageMagick command line tools.
package imagemagick

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
)

const (
	defaultTimeout    = 90 * time.Second
	previewGeometry   = "800x800"
	thumbnailGeometry = "200x200"
)

type Renderer struct {
	binary  string
	timeout time.Duration
}

type Option func(*Renderer)

func WithBinary(path string) Option {
	return func(r *Renderer) {
		if path != "" {
			r.binary = path
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{binary: "convert", timeout: defaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Preview(ctx context.Context, srcPath string, format domain.FileFormat) ([]byte, error) {
	return r.render(ctx, srcPath, format, previewGeometry)
}

func (r *Renderer) Thumbnail(ctx context.Context, srcPath string, format domain.FileFormat) ([]byte, error) {
	return r.render(ctx, srcPath, format, thumbnailGeometry)
}

func (r *Renderer) render(ctx context.Context, srcPath string, format domain.FileFormat, geometry string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.convert(ctx, renderSource(srcPath, format), geometry)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("render %s: %w", srcPath, err)
	}

	// Formats ImageMagick has no delegate for (office documents mostly)
	// fall back to a generic labeled placeholder.
	out, fallbackErr := r.convert(ctx, placeholderSource(srcPath), geometry)
	if fallbackErr != nil {
		return nil, fmt.Errorf("render %s: %w", srcPath, err)
	}
	return out, nil
}

func (r *Renderer) convert(ctx context.Context, source, geometry string) ([]byte, error) {
	args := []string{
		source,
		"-background", "white",
		"-alpha", "remove",
		"-resize", geometry,
		"jpg:-",
	}
	out, err := exec.CommandContext(ctx, r.binary, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s: %w", r.binary, strings.TrimSpace(string(ee.Stderr)), err)
		}
		return nil, fmt.Errorf("%s: %w", r.binary, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s produced no output", r.binary)
	}
	return out, nil
}

// renderSource selects the first page for multi-page formats so a preview
// stays a single image.
func renderSource(srcPath string, format domain.FileFormat) string {
	if format == domain.FormatPDF {
		return srcPath + "[0]"
	}
	return srcPath
}

func placeholderSource(srcPath string) string {
	ext := strings.TrimPrefix(filepath.Ext(srcPath), ".")
	if ext == "" {
		ext = "doc"
	}
	return "label:" + strings.ToUpper(ext)
}
