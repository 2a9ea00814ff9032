package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goword "github.com/VantageDataChat/GoWord"
	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextExtractor reads flat text as UTF-8. A leading BOM is honoured and
// invalid bytes become U+FFFD.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, req Request, _ Deadline, progress ProgressFunc) (Result, error) {
	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read text: %w", err)
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		decoded = raw
	}
	report(progress, 1, 1)
	return Result{Text: strings.ToValidUTF8(string(decoded), "\uFFFD")}, nil
}

// WordExtractor emits the paragraphs of a .docx, one per line.
type WordExtractor struct{}

func (WordExtractor) Extract(_ context.Context, req Request, _ Deadline, progress ProgressFunc) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("docx parse panic: %v", r)
		}
	}()

	data, err := os.ReadFile(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read docx: %w", err)
	}
	doc, err := goword.OpenFromBytes(data)
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	report(progress, 1, 1)
	return Result{Text: paragraphLines(doc.ExtractText())}, nil
}

// paragraphLines puts one paragraph per line. Empty paragraphs stay as blank
// lines; trailing whitespace and trailing blank lines are dropped.
func paragraphLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// SheetExtractor renders each worksheet, in workbook order, as a text table.
type SheetExtractor struct {
	logger *slog.Logger
}

func NewSheetExtractor(logger *slog.Logger) *SheetExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetExtractor{logger: logger}
}

func (e *SheetExtractor) Extract(_ context.Context, req Request, dl Deadline, progress ProgressFunc) (Result, error) {
	f, err := excelize.OpenFile(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("failed to close workbook", "file", req.Name, "error", err)
		}
	}()

	sheets := f.GetSheetList()
	var b strings.Builder
	for i, name := range sheets {
		if err := dl.Check(); err != nil {
			return Result{}, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return Result{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- Sheet: %s ---\n", name)
		b.WriteString(renderTable(rows))
		report(progress, i+1, len(sheets))
	}
	return Result{Text: strings.TrimRight(b.String(), "\n")}, nil
}

// renderTable uses the first row as header. Rows are padded to equal width.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return "(empty sheet)\n"
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	padded := make([][]string, len(rows))
	for i, r := range rows {
		p := make([]string, width)
		copy(p, r)
		padded[i] = p
	}

	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.SetHeader(padded[0])
	tw.AppendBulk(padded[1:])
	tw.Render()
	return buf.String()
}
