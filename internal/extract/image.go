package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/docextract/internal/ocr"
)

// ImageExtractor OCRs a single raster image. Engine failures give an empty
// text; a missing engine gives an explicit marker.
type ImageExtractor struct {
	ocr    ImageOCR
	logger *slog.Logger
}

func NewImageExtractor(imageOCR ImageOCR, logger *slog.Logger) *ImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{ocr: imageOCR, logger: logger}
}

func (e *ImageExtractor) Extract(ctx context.Context, req Request, _ Deadline, progress ProgressFunc) (Result, error) {
	defer report(progress, 1, 1)
	if e.ocr == nil {
		return Result{Text: unavailableMarker(ocr.ErrUnavailable)}, nil
	}
	txt, err := e.ocr.ImageToText(ctx, req.Path)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			return Result{Text: unavailableMarker(err)}, nil
		}
		e.logger.Warn("image ocr failed", "file", req.Name, "error", err)
		return Result{}, nil
	}
	return Result{Text: txt}, nil
}
