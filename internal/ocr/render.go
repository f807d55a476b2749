package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// RendererConfig configures rasterisation of image-only PDFs.
type RendererConfig struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // default 200
}

// Renderer turns the first page of a PDF into PNG bytes via pdftoppm.
type Renderer struct {
	cfg    RendererConfig
	runner Runner
	logger *slog.Logger
}

func NewRenderer(cfg RendererConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return newRenderer(cfg, execRunner{logger: logger}, logger)
}

func newRenderer(cfg RendererConfig, runner Runner, logger *slog.Logger) *Renderer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &Renderer{cfg: cfg, runner: runner, logger: logger}
}

// RenderFirstPage returns the first page of the PDF at path as PNG bytes.
func (r *Renderer) RenderFirstPage(ctx context.Context, path string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "rx-render-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("ocr.render.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png -f 1 -l 1 <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", strconv.Itoa(r.cfg.DPI), "-png", "-f", "1", "-l", "1", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return os.ReadFile(matches[0])
}
