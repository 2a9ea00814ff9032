package ocr

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Adapter turns a single raster image into text: preprocess, then recognize.
type Adapter struct {
	engine Engine
	pre    *Preprocessor
	logger *slog.Logger
}

func NewAdapter(engine Engine, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		engine: engine,
		pre:    NewPreprocessor(cfg),
		logger: logger,
	}
}

// Available reports whether the underlying engine can run.
func (a *Adapter) Available() error {
	if a.engine == nil {
		return ErrUnavailable
	}
	return a.engine.Available()
}

// ImageToText recognizes the image at path. When preprocessing fails the
// original image is recognized instead. Errors wrapping ErrUnavailable mean
// no engine is installed; any other error is a failure for this image only.
func (a *Adapter) ImageToText(ctx context.Context, path string) (string, error) {
	if err := a.Available(); err != nil {
		return "", err
	}
	start := time.Now()

	target := path
	prepared, cleanup, err := a.pre.Prepare(path)
	if err != nil {
		a.logger.Warn("preprocessing failed; using original image", "path", path, "mode", a.pre.cfg.Mode, "error", err)
	} else {
		defer cleanup()
		target = prepared
	}

	text, err := a.engine.Recognize(ctx, target)
	if err != nil && target != path && !errors.Is(err, ErrUnavailable) {
		a.logger.Warn("ocr on preprocessed image failed; retrying original", "path", path, "error", err)
		text, err = a.engine.Recognize(ctx, path)
	}
	if err != nil {
		return "", err
	}
	a.logger.Debug("image ocr done",
		"path", path,
		"engine", a.engine.Name(),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
