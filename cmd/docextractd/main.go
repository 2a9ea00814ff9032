package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/core"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/ocr"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger, flush, err := common.NewLogger(cfg.Log)
	if err != nil {
		slog.Error("build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("docextractd stopped with error", "error", err)
		flush()
		os.Exit(1)
	}
	logger.Info("stopped")
	flush()
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploads, err := ingest.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return err
	}
	archive, err := export.NewArchive(cfg.Storage.ArchiveDir, logger)
	if err != nil {
		return err
	}

	ocrCfg, err := ocr.ConfigFrom(cfg.OCR, uploads.Dir())
	if err != nil {
		return err
	}
	engine, err := ocr.NewEngine(ocrCfg, logger)
	if err != nil {
		// extraction still runs; images and scanned pages degrade to markers
		logger.Error("ocr engine unavailable", "engine", ocrCfg.Engine, "error", err)
		engine = nil
	}
	adapter := ocr.NewAdapter(engine, ocrCfg, logger)
	if err := adapter.Available(); err != nil {
		logger.Warn("OCR disabled", "error", err)
	}
	renderer := ocr.NewPopplerRenderer(ocrCfg, ocr.ExecRunner{}, logger)
	dispatcher := extract.NewDispatcher(extract.LedongthucTextLayer{}, renderer, adapter, logger)

	registry := tasks.NewMemoryRegistry(tasks.WithTTL(cfg.Extraction.TaskTTL))
	processor := core.NewProcessor(registry, dispatcher, logger, core.WithTaskTimeout(cfg.Extraction.TaskTimeout))
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	svc := core.NewService(core.ServiceConfig{
		Registry: registry,
		Queue:    queue,
		Uploads:  uploads,
		Archive:  archive,
		MaxBytes: cfg.Extraction.MaxUploadBytes,
	}, logger)

	var summarizer llm.Summarizer
	if cfg.LLM.APIKey != "" {
		summarizer = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	} else {
		logger.Warn("LLM_API_KEY not set; /analyze disabled")
	}

	api := server.NewAPI(server.APIConfig{
		Tasks:      svc,
		Summarizer: summarizer,
		Reports:    archive,
		MaxBytes:   cfg.Extraction.MaxUploadBytes,
	}, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv, health := server.NewGRPCServer(logger)

	var lis net.Listener
	if cfg.Server.GRPCAddr != "" {
		if lis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks.RunJanitor(gctx, registry, cfg.Extraction.SweepInterval, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if lis != nil {
		g.Go(func() error {
			logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
			return grpcSrv.Serve(lis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		health.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		grpcSrv.GracefulStop()
		queue.Shutdown(sctx)
		return nil
	})
	return g.Wait()
}
