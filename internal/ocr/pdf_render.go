package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Renderer rasterizes one PDF page to an image file.
type Renderer interface {
	// RenderPage writes page (1-based) of pdfPath to outPrefix+".png" and returns that path.
	RenderPage(ctx context.Context, pdfPath string, page int, outPrefix string) (string, error)
}

// PopplerRenderer renders pages with pdftoppm.
type PopplerRenderer struct {
	bin    string
	dpi    int
	runner Runner
	logger *slog.Logger
}

func NewPopplerRenderer(cfg Config, runner Runner, logger *slog.Logger) *PopplerRenderer {
	cfg = cfg.withDefaults()
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PopplerRenderer{bin: cfg.Pdftoppm, dpi: cfg.DPI, runner: runner, logger: logger}
}

// RenderPage runs: pdftoppm -f N -l N -r DPI -png -singlefile <pdf> <prefix>
func (r *PopplerRenderer) RenderPage(ctx context.Context, pdfPath string, page int, outPrefix string) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("render page: invalid page %d", page)
	}
	n := strconv.Itoa(page)
	_, errb, err := r.runner.Run(ctx, r.bin, r.logger,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(r.dpi),
		"-png", "-singlefile",
		pdfPath, outPrefix,
	)
	out := outPrefix + ".png"
	if err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", page, err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm page %d produced no image: %w", page, err)
	}
	return out, nil
}
