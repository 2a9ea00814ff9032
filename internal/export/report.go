package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goword "github.com/VantageDataChat/GoWord"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/common"
)

const (
	ReportTitle   = "Medical Report Summary"
	FullTextTitle = "Full Text"
)

// ErrReportNotFound is returned for unknown or malformed report ids.
var ErrReportNotFound = fmt.Errorf("report: %w", common.ErrNotFound)

// Report is the content of one generated document.
type Report struct {
	Summary  string
	FullText string
}

// Archive writes .docx reports into a directory, one file per report id.
type Archive struct {
	dir    string
	logger *slog.Logger
}

func NewArchive(dir string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dir: dir, logger: logger}, nil
}

func (a *Archive) Dir() string { return a.dir }

// Save renders r and stores it as <dir>/<id>.docx, returning the new id.
func (a *Archive) Save(r Report) (string, error) {
	id := uuid.NewString()
	tmp := filepath.Join(a.dir, ".partial-"+id+".docx")
	defer func() { _ = os.Remove(tmp) }()
	if err := writeDocx(tmp, r); err != nil {
		return "", err
	}
	dst := filepath.Join(a.dir, id+".docx")
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	if st, err := os.Stat(dst); err == nil {
		a.logger.Info("report saved", "report_id", id, "bytes", st.Size())
	}
	return id, nil
}

// Path returns the file backing report id.
func (a *Archive) Path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrReportNotFound
	}
	p := filepath.Join(a.dir, id+".docx")
	st, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) || (err == nil && st.IsDir()) {
		return "", ErrReportNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat report: %w", err)
	}
	return p, nil
}

// Purge deletes every stored report.
func (a *Archive) Purge() (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("read archive dir: %w", err)
	}
	n := 0
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(a.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// writeDocx lays out the report: title, summary paragraphs, a page break,
// then the full extracted text under its own heading.
func writeDocx(path string, r Report) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("docx: render panic: %v", rec)
		}
	}()
	doc := goword.New()
	sec := doc.AddSection()
	sec.AddTitle(ReportTitle, 1)
	for _, line := range paragraphs(r.Summary) {
		sec.AddText(line)
	}
	sec.AddPageBreak()
	sec.AddTitle(FullTextTitle, 2)
	for _, line := range paragraphs(r.FullText) {
		sec.AddText(line)
	}
	if err := doc.Save(path); err != nil {
		return fmt.Errorf("docx: save: %w", err)
	}
	return nil
}

func paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
