package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/core"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

func main() {
	timeout := flag.Duration("timeout", 0, "extraction deadline (default TASK_TIMEOUT)")
	skipHidden := flag.Bool("skip-hidden", true, "skip dotfiles when walking directories")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		logger.Error("usage", "cmd", "runextract [-timeout 25s] <file-or-dir>...")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if *timeout <= 0 {
		*timeout = cfg.Extraction.TaskTimeout
	}

	if err := run(cfg, flag.Args(), *timeout, *skipHidden, logger); err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *common.Config, roots []string, timeout time.Duration, skipHidden bool, logger *slog.Logger) error {
	scratch, err := os.MkdirTemp("", "runextract-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	var files []extract.Request
	for _, arg := range roots {
		paths, stats, err := ingest.CollectPaths(arg, skipHidden)
		if err != nil {
			return fmt.Errorf("collect %s: %w", arg, err)
		}
		logger.Info("collected", "root", arg, "scanned", stats.Scanned, "matched", stats.Matched,
			"unsupported", stats.Unsupported, "skipped", stats.Skipped, "failed", stats.Failed)
		for _, p := range paths {
			st, err := os.Stat(p)
			if err != nil {
				logger.Error("stat", "path", p, "error", err)
				continue
			}
			files = append(files, extract.Request{
				Path:          p,
				Name:          filepath.Base(p),
				Format:        constants.MapExtToFormat(filepath.Ext(p)),
				Size:          st.Size(),
				ScratchPrefix: filepath.Join(scratch, fmt.Sprintf("f%d", len(files))),
			})
		}
	}

	ocrCfg, err := ocr.ConfigFrom(cfg.OCR, scratch)
	if err != nil {
		return err
	}
	engine, err := ocr.NewEngine(ocrCfg, logger)
	if err != nil {
		logger.Warn("ocr engine unavailable", "error", err)
		engine = nil
	}
	adapter := ocr.NewAdapter(engine, ocrCfg, logger)
	renderer := ocr.NewPopplerRenderer(ocrCfg, ocr.ExecRunner{}, logger)
	dispatcher := extract.NewDispatcher(extract.LedongthucTextLayer{}, renderer, adapter, logger)
	processor := core.NewProcessor(tasks.NewMemoryRegistry(), dispatcher, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()

	start := time.Now()
	text, err := processor.Extract(ctx, files, extract.NewDeadline(start, timeout, time.Now), func(pct int) {
		logger.Debug("progress", "pct", pct)
	})
	if err != nil {
		return fmt.Errorf("%d files after %dms: %w", len(files), time.Since(start).Milliseconds(), err)
	}
	logger.Info("extraction OK", "files", len(files), "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
	fmt.Println(text)
	return nil
}
