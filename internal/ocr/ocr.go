package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// ErrUnavailable is returned when no OCR engine is installed or linked.
var ErrUnavailable = errors.New("ocr engine unavailable")

type Config struct {
	Engine    string // "tesseract" (CLI, default) | "gosseract" (requires the gosseract build tag)
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Lang        string // tesseract language hint, default "ita+eng"; "auto" lets the engine pick
	TessdataDir string
	DPI         int // rasterization DPI for scanned PDF pages, default 300

	PSM int // 6 = assume a single uniform block of text
	OEM int // 1 = LSTM only

	Mode         Mode
	MaxSide      int     // fast mode: longest side after downscale, default 1500
	BlockSize    int     // full mode: adaptive threshold neighbourhood, default 31
	ThresholdC   float64 // full mode: constant subtracted from the local mean, default 2
	MedianKernel int     // full mode: denoise kernel, default 3

	TempDir string // where preprocessed and rendered images are written
}

func (c Config) withDefaults() Config {
	if c.Engine == "" {
		c.Engine = "tesseract"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Lang == "" {
		c.Lang = "ita+eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PSM == 0 {
		c.PSM = 6
	}
	if c.OEM == 0 {
		c.OEM = 1
	}
	if c.Mode == "" {
		c.Mode = ModeFast
	}
	if c.MaxSide <= 0 {
		c.MaxSide = 1500
	}
	if c.BlockSize < 3 {
		c.BlockSize = 31
	}
	if c.BlockSize%2 == 0 {
		c.BlockSize++
	}
	if c.ThresholdC == 0 {
		c.ThresholdC = 2
	}
	if c.MedianKernel < 3 {
		c.MedianKernel = 3
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// ConfigFrom maps the application OCR settings onto Config.
func ConfigFrom(c common.OCRConfig, tempDir string) (Config, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Engine:      c.Engine,
		Tesseract:   c.Tesseract,
		Pdftoppm:    c.Pdftoppm,
		Lang:        c.Lang,
		TessdataDir: c.TessdataDir,
		DPI:         c.DPI,
		Mode:        mode,
		BlockSize:   c.BlockSize,
		TempDir:     tempDir,
	}.withDefaults(), nil
}

// Engine converts one raster image on disk into text.
type Engine interface {
	Name() string
	// Available reports ErrUnavailable (wrapped) when the engine cannot run at all.
	Available() error
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// NewEngine picks the engine named by cfg.Engine.
func NewEngine(cfg Config, logger *slog.Logger) (Engine, error) {
	cfg = cfg.withDefaults()
	switch cfg.Engine {
	case "tesseract":
		return NewTesseractEngine(cfg, logger), nil
	case "gosseract":
		return newGosseractEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

// fallbackTesseractPaths are probed when the configured binary is not on PATH.
var fallbackTesseractPaths = []string{"/usr/bin/tesseract", "/usr/local/bin/tesseract"}

// TesseractEngine shells out to the tesseract CLI.
type TesseractEngine struct {
	cfg      Config
	runner   Runner
	logger   *slog.Logger
	lookPath func(string) (string, error)

	once     sync.Once
	bin      string
	availErr error
}

type EngineOption func(*TesseractEngine)

func WithRunner(r Runner) EngineOption {
	return func(e *TesseractEngine) {
		if r != nil {
			e.runner = r
		}
	}
}

func WithLookPath(fn func(string) (string, error)) EngineOption {
	return func(e *TesseractEngine) {
		if fn != nil {
			e.lookPath = fn
		}
	}
}

func NewTesseractEngine(cfg Config, logger *slog.Logger, opts ...EngineOption) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &TesseractEngine{
		cfg:      cfg.withDefaults(),
		runner:   ExecRunner{},
		logger:   logger,
		lookPath: exec.LookPath,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Available resolves the binary once and caches the outcome.
func (e *TesseractEngine) Available() error {
	e.once.Do(func() {
		e.bin, e.availErr = e.resolveBinary()
		if e.availErr != nil {
			e.logger.Error("tesseract not found; OCR disabled", "configured", e.cfg.Tesseract, "error", e.availErr)
			return
		}
		e.logger.Info("tesseract configured", "path", e.bin, "lang", e.cfg.Lang)
	})
	return e.availErr
}

func (e *TesseractEngine) resolveBinary() (string, error) {
	if p, err := e.lookPath(e.cfg.Tesseract); err == nil {
		return p, nil
	}
	for _, p := range fallbackTesseractPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found", ErrUnavailable, e.cfg.Tesseract)
}

// Recognize runs: tesseract <img> stdout [-l lang] --oem N --psm N [--tessdata-dir d]
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := e.Available(); err != nil {
		return "", err
	}
	out, errb, err := e.runner.Run(ctx, e.bin, e.logger, e.args(imagePath)...)
	if err != nil {
		msg := strings.TrimSpace(truncate(string(errb), 512))
		if msg == "" {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return Normalize(string(out)), nil
}

func (e *TesseractEngine) args(imagePath string) []string {
	args := []string{imagePath, "stdout"}
	if lang := strings.TrimSpace(e.cfg.Lang); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", filepath.Clean(e.cfg.TessdataDir))
	}
	return args
}
