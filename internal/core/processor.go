package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

// progressBudget is the share of 0-100 spread over files; completion writes 100.
const progressBudget = 99

// Processor drives one task's files through extraction and owns its
// registry entry from processing to a terminal state.
type Processor struct {
	registry  tasks.Registry
	extractor extract.Extractor
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type ProcessorOption func(*Processor)

// WithTaskTimeout sets the cooperative deadline measured from StartedAt.
func WithTaskTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(registry tasks.Registry, extractor extract.Extractor, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		registry:  registry,
		extractor: extractor,
		timeout:   25 * time.Second,
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle implements async.Handler. It always leaves the task terminal and
// removes every stored upload, whatever happens. Uploads are gone before the
// terminal state becomes visible to pollers.
func (p *Processor) Handle(ctx context.Context, job async.Job) {
	logger := common.LoggerFrom(ctx, p.logger).With("task_id", job.TaskID)
	status, result, started := p.run(ctx, job, logger)
	p.cleanup(job.Files, logger)
	if started {
		p.finish(job.TaskID, status, result, logger)
	}
}

// run extracts the job and returns the terminal state to record. started is
// false when the task could not be moved to processing.
func (p *Processor) run(ctx context.Context, job async.Job, logger *slog.Logger) (status constants.TaskStatus, result string, started bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
			status, result, started = constants.TaskStatusError, fmt.Sprintf("internal error: %v", r), true
		}
	}()

	if ok, err := p.registry.Transition(job.TaskID, constants.TaskStatusProcessing, ""); err != nil || !ok {
		logger.Error("cannot start task", "error", err, "started", ok)
		return "", "", false
	}
	task, err := p.registry.Get(job.TaskID)
	if err != nil {
		logger.Error("task vanished after start", "error", err)
		return "", "", false
	}
	logger.Info("task started", "files", len(job.Files))

	dl := extract.NewDeadline(task.StartedAt, p.timeout, p.now)
	var regErr error
	text, err := p.Extract(ctx, job.Files, dl, func(pct int) {
		if regErr != nil {
			return
		}
		if err := p.registry.UpdateProgress(job.TaskID, pct); err != nil {
			regErr = err
		}
	})
	if err == nil && regErr != nil {
		err = fmt.Errorf("update progress: %w", regErr)
	}

	switch {
	case errors.Is(err, extract.ErrDeadlineExceeded):
		logger.Warn("task timed out", "timeout", p.timeout, "error", err)
		return constants.TaskStatusTimeout, fmt.Sprintf("processing exceeded %s deadline", p.timeout), true
	case err != nil:
		return constants.TaskStatusError, err.Error(), true
	default:
		return constants.TaskStatusCompleted, text, true
	}
}

// Extract runs files in order and joins their fragments with a blank line.
// A failing file contributes an error marker; only the deadline (or the job
// context ending) aborts the whole run. progress may be nil.
func (p *Processor) Extract(ctx context.Context, files []extract.Request, dl extract.Deadline, progress func(pct int)) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	last := 0
	advance := func(pct int) {
		if pct > last && progress != nil {
			last = pct
			progress(pct)
		}
	}

	fragments := make([]string, 0, len(files))
	n := len(files)
	for i, f := range files {
		if err := dl.Check(); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", extract.ErrDeadlineExceeded, err)
		}

		lo, hi := i*progressBudget/n, (i+1)*progressBudget/n
		res, err := p.extractOne(ctx, f, dl, func(done, total int) {
			if total > 0 {
				advance(lo + (hi-lo)*min(done, total)/total)
			}
		})
		if errors.Is(err, extract.ErrDeadlineExceeded) {
			return "", err
		}
		if err != nil {
			p.logger.Warn("file extraction failed", "file", f.Name, "error", err)
			fragments = append(fragments, ErrorMarker(f.Name, err))
		} else {
			fragments = append(fragments, res.Text)
		}
		advance(hi)
	}
	return strings.Join(fragments, "\n\n"), nil
}

// extractOne isolates a single file: panics become errors.
func (p *Processor) extractOne(ctx context.Context, f extract.Request, dl extract.Deadline, progress extract.ProgressFunc) (res extract.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = extract.Result{}
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	start := time.Now()
	res, err = p.extractor.Extract(ctx, f, dl, progress)
	p.logger.Debug("file extracted",
		"file", f.Name,
		"format", f.Format,
		"pages", len(res.Pages),
		"chars", len(res.Text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}

func (p *Processor) finish(id string, status constants.TaskStatus, result string, logger *slog.Logger) {
	ok, err := p.registry.Transition(id, status, result)
	if err != nil {
		logger.Error("failed to record terminal state", "status", status, "error", err)
		return
	}
	if ok {
		logger.Info("task finished", "status", status, "result_chars", len(result))
	}
}

// cleanup removes stored uploads and any rendered page left under their scratch prefix.
func (p *Processor) cleanup(files []extract.Request, logger *slog.Logger) {
	for _, f := range files {
		targets := []string{f.Path}
		if f.ScratchPrefix != "" {
			leftovers, _ := filepath.Glob(f.ScratchPrefix + "_page*")
			targets = append(targets, leftovers...)
		}
		for _, t := range targets {
			if err := os.Remove(t); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to remove temp file", "path", t, "error", err)
			}
		}
	}
}

// ErrorMarker is the fragment recorded for a file whose extraction failed.
func ErrorMarker(name string, err error) string {
	return fmt.Sprintf("[error: %s: %v]", name, err)
}
