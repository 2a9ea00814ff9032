//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// gosseractEngine links libtesseract in-process, one client per image.
type gosseractEngine struct {
	cfg           Config
	logger        *slog.Logger
	clientFactory func() *gosseract.Client
}

func newGosseractEngine(cfg Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("gosseract configured", "lang", cfg.Lang, "psm", cfg.PSM)
	return &gosseractEngine{cfg: cfg, logger: logger, clientFactory: gosseract.NewClient}, nil
}

func (g *gosseractEngine) Name() string { return "gosseract" }

func (g *gosseractEngine) Available() error { return nil }

func (g *gosseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := g.clientFactory()
	defer c.Close()

	if lang := strings.TrimSpace(g.cfg.Lang); lang != "" && lang != "auto" {
		if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if g.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	vars := map[string]string{
		"tessedit_pageseg_mode": strconv.Itoa(g.cfg.PSM),
		"user_defined_dpi":      strconv.Itoa(g.cfg.DPI),
	}
	for k, v := range vars {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return Normalize(text), nil
}
