package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/ocr"
)

// Dispatcher routes a request to the extractor for its format.
type Dispatcher struct {
	pdf   Extractor
	image Extractor
	text  Extractor
	word  Extractor
	sheet Extractor

	logger *slog.Logger
}

// NewDispatcher wires the default extractors around the given OCR pieces.
func NewDispatcher(layer TextLayer, renderer ocr.Renderer, imageOCR ImageOCR, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pdf:    NewPDFExtractor(layer, renderer, imageOCR, logger),
		image:  NewImageExtractor(imageOCR, logger),
		text:   TextExtractor{},
		word:   WordExtractor{},
		sheet:  NewSheetExtractor(logger),
		logger: logger,
	}
}

// For returns the extractor for f, or nil for UNSUPPORTED.
func (d *Dispatcher) For(f constants.Format) Extractor {
	switch f {
	case constants.PDF:
		return d.pdf
	case constants.IMAGE:
		return d.image
	case constants.TEXT:
		return d.text
	case constants.WORD:
		return d.word
	case constants.SPREADSHEET:
		return d.sheet
	case constants.UNSUPPORTED:
		return nil
	default:
		panic(fmt.Sprintf("extract: unhandled format %q", f))
	}
}

// Extract classifies req when needed and runs the matching extractor.
// Unsupported files yield a marker, not an error.
func (d *Dispatcher) Extract(ctx context.Context, req Request, dl Deadline, progress ProgressFunc) (Result, error) {
	if req.Format == "" {
		req.Format = constants.MapExtToFormat(filepath.Ext(req.Name))
	}
	ex := d.For(req.Format)
	if ex == nil {
		report(progress, 1, 1)
		return Result{Text: UnsupportedMarker(req.Name)}, nil
	}
	d.logger.Debug("extracting file", "file", req.Name, "format", req.Format)
	return ex.Extract(ctx, req, dl, progress)
}

// UnsupportedMarker is the fragment emitted for an unrecognized extension.
func UnsupportedMarker(name string) string {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if ext == "" {
		return "[unsupported format: (no extension)]"
	}
	return fmt.Sprintf("[unsupported format: .%s]", ext)
}
