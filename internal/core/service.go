package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

var (
	ErrNoFiles         = fmt.Errorf("no files submitted: %w", common.ErrInvalidInput)
	ErrPayloadTooLarge = fmt.Errorf("payload too large: %w", common.ErrInvalidInput)
	ErrBusy            = fmt.Errorf("tasks still running: %w", common.ErrConflict)
)

// Purger empties a storage directory.
type Purger interface {
	Purge() (int, error)
}

// Enqueuer accepts jobs for background execution without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Service is the entry point for submissions, status polling and resets.
type Service struct {
	registry tasks.Registry
	queue    Enqueuer
	uploads  *ingest.Store
	archive  Purger
	maxBytes int64
	logger   *slog.Logger
	newID    func() string

	// submissions hold the read side; Reset takes the write side
	mu sync.RWMutex
}

type ServiceConfig struct {
	Registry tasks.Registry
	Queue    Enqueuer
	Uploads  *ingest.Store
	Archive  Purger // optional; purged on reset
	MaxBytes int64
}

func NewService(cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &Service{
		registry: cfg.Registry,
		queue:    cfg.Queue,
		uploads:  cfg.Uploads,
		archive:  cfg.Archive,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Submit validates and stores the uploads, registers a pending task and
// queues it. On any failure nothing is left behind: no task, no files.
func (s *Service) Submit(ctx context.Context, uploads []ingest.Upload) (string, error) {
	logger := common.LoggerFrom(ctx, s.logger)
	if len(uploads) == 0 {
		return "", ErrNoFiles
	}
	var declared int64
	for _, u := range uploads {
		declared += max(u.Size, 0)
	}
	if declared > s.maxBytes {
		logger.Warn("upload rejected", "declared_bytes", declared, "limit", s.maxBytes)
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, declared, s.maxBytes)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.newID()
	files := make([]extract.Request, 0, len(uploads))
	rollback := func() {
		for _, f := range files {
			s.uploads.Remove(f.Path)
		}
	}

	remaining := s.maxBytes
	for i, u := range uploads {
		sf, err := s.uploads.Save(id, i, u, remaining)
		if err != nil {
			rollback()
			if errors.Is(err, ingest.ErrTooLarge) {
				return "", fmt.Errorf("%w: content exceeds %d bytes", ErrPayloadTooLarge, s.maxBytes)
			}
			return "", err
		}
		remaining -= sf.Size
		files = append(files, extract.Request{
			Path:          sf.Path,
			Name:          sf.Name,
			Format:        sf.Format,
			Size:          sf.Size,
			ScratchPrefix: strings.TrimSuffix(sf.Path, "_"+ingest.SafeName(u.Name)),
		})
	}

	if _, err := s.registry.Create(id); err != nil {
		rollback()
		return "", err
	}
	job := async.Job{
		TaskID:      id,
		Files:       files,
		SubmittedAt: time.Now(),
		RequestID:   common.RequestIDFromContext(ctx),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.registry.Delete(id)
		rollback()
		return "", err
	}
	logger.Info("task submitted", "task_id", id, "files", len(files), "bytes", s.maxBytes-remaining)
	return id, nil
}

// Status returns the current snapshot of a task.
func (s *Service) Status(id string) (tasks.Task, error) {
	return s.registry.Get(id)
}

// Reset drops every task and stored file. It refuses while any task is
// pending or processing.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.registry.Active(); n > 0 {
		return fmt.Errorf("%w: %d active", ErrBusy, n)
	}
	s.registry.Clear()

	var errs []error
	if _, err := s.uploads.Purge(); err != nil {
		errs = append(errs, err)
	}
	if s.archive != nil {
		if _, err := s.archive.Purge(); err != nil {
			errs = append(errs, err)
		}
	}
	common.LoggerFrom(ctx, s.logger).Info("state reset")
	return errors.Join(errs...)
}
