package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/docextract/internal/ocr"
)

// MinDigitalChars is the trimmed length at which a page's embedded text is trusted.
// Scans often leak a handful of stray characters, so anything shorter is OCR'd.
const MinDigitalChars = 10

// TextLayer reads the embedded text of every page of a PDF, in page order.
type TextLayer interface {
	PageTexts(path string) ([]string, error)
}

// ImageOCR is the part of ocr.Adapter the extractors rely on.
type ImageOCR interface {
	Available() error
	ImageToText(ctx context.Context, path string) (string, error)
}

// LedongthucTextLayer reads text layers with github.com/ledongthuc/pdf.
type LedongthucTextLayer struct{}

func (LedongthucTextLayer) PageTexts(path string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	texts = make([]string, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			// an unreadable text layer is treated as an empty one
			continue
		}
		texts[i-1] = txt
	}
	return texts, nil
}

// PDFExtractor decides per page between the embedded text layer and OCR.
type PDFExtractor struct {
	layer    TextLayer
	renderer ocr.Renderer
	ocr      ImageOCR
	logger   *slog.Logger
}

func NewPDFExtractor(layer TextLayer, renderer ocr.Renderer, imageOCR ImageOCR, logger *slog.Logger) *PDFExtractor {
	if layer == nil {
		layer = LedongthucTextLayer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{layer: layer, renderer: renderer, ocr: imageOCR, logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, req Request, dl Deadline, progress ProgressFunc) (Result, error) {
	texts, err := e.layer.PageTexts(req.Path)
	if err != nil {
		return Result{}, err
	}
	if len(texts) == 0 {
		return Result{}, errors.New("pdf has no pages")
	}

	pages := make([]PageResult, 0, len(texts))
	for i, raw := range texts {
		if err := dl.Check(); err != nil {
			return Result{}, err
		}
		n := i + 1
		trimmed := strings.TrimSpace(raw)
		if utf8.RuneCountInString(trimmed) >= MinDigitalChars {
			pages = append(pages, PageResult{Number: n, Text: trimmed, Provenance: ProvenanceDigital})
		} else {
			pages = append(pages, PageResult{Number: n, Text: e.ocrPage(ctx, req, n), Provenance: ProvenanceOCR})
		}
		report(progress, n, len(texts))
	}

	return Result{Text: FormatPages(pages), Pages: pages}, nil
}

// ocrPage renders page n and recognizes it. The rendered image is removed on
// every path; OCR failures degrade to an empty page.
func (e *PDFExtractor) ocrPage(ctx context.Context, req Request, n int) string {
	if e.ocr == nil || e.renderer == nil {
		return unavailableMarker(ocr.ErrUnavailable)
	}
	if err := e.ocr.Available(); err != nil {
		return unavailableMarker(err)
	}

	prefix := req.ScratchPrefix
	if prefix == "" {
		prefix = strings.TrimSuffix(req.Path, filepath.Ext(req.Path))
	}
	img, err := e.renderer.RenderPage(ctx, req.Path, n, fmt.Sprintf("%s_page%d", prefix, n))
	if err != nil {
		e.logger.Warn("page render failed", "file", req.Name, "page", n, "error", err)
		return ""
	}
	defer func() {
		if err := os.Remove(img); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove rendered page", "path", img, "error", err)
		}
	}()

	txt, err := e.ocr.ImageToText(ctx, img)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			return unavailableMarker(err)
		}
		e.logger.Warn("page ocr failed", "file", req.Name, "page", n, "error", err)
		return ""
	}
	return txt
}

// FormatPages renders pages with their markers, separated by blank lines.
func FormatPages(pages []PageResult) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if p.Provenance == ProvenanceOCR {
			fmt.Fprintf(&b, "--- Page %d (OCR) ---", p.Number)
		} else {
			fmt.Fprintf(&b, "--- Page %d ---", p.Number)
		}
		if p.Text != "" {
			b.WriteString("\n")
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func unavailableMarker(err error) string {
	return fmt.Sprintf("[OCR unavailable: %v]", err)
}
