package extract

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// ErrDeadlineExceeded is returned when a deadline check fails between units of work.
var ErrDeadlineExceeded = errors.New("extraction deadline exceeded")

// Provenance tags where a page's text came from.
type Provenance string

const (
	ProvenanceDigital Provenance = "digital"
	ProvenanceOCR     Provenance = "ocr"
)

// Request is one stored file awaiting extraction.
type Request struct {
	Path   string           // stored upload
	Name   string           // original filename, used in markers and logs
	Format constants.Format // classifier output
	Size   int64

	// ScratchPrefix is a task-qualified path prefix for intermediate artifacts
	// such as rendered PDF pages. Empty means next to Path.
	ScratchPrefix string
}

// PageResult is the text of one PDF page.
type PageResult struct {
	Number     int
	Text       string
	Provenance Provenance
}

// Result is what an extractor produced for one file.
type Result struct {
	Text  string
	Pages []PageResult // PDF only
}

// ProgressFunc is called after each unit of work with done of total units.
type ProgressFunc func(done, total int)

// Extractor turns one file into text.
type Extractor interface {
	Extract(ctx context.Context, req Request, dl Deadline, progress ProgressFunc) (Result, error)
}

// Deadline is a wall-clock cutoff checked before each page or file.
// The zero value never expires.
type Deadline struct {
	at  time.Time
	now func() time.Time
}

// NewDeadline returns a deadline d after start. A nil now uses time.Now.
func NewDeadline(start time.Time, d time.Duration, now func() time.Time) Deadline {
	if now == nil {
		now = time.Now
	}
	return Deadline{at: start.Add(d), now: now}
}

// At returns the cutoff; zero when unset.
func (d Deadline) At() time.Time { return d.at }

func (d Deadline) Exceeded() bool {
	if d.at.IsZero() {
		return false
	}
	return d.now().After(d.at)
}

// Check returns ErrDeadlineExceeded once the cutoff has passed.
func (d Deadline) Check() error {
	if d.Exceeded() {
		return ErrDeadlineExceeded
	}
	return nil
}

func report(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}
