package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
)

var (
	ErrQueueFull   = fmt.Errorf("extraction queue is full: %w", common.ErrUnavailable)
	ErrQueueClosed = errors.New("extraction queue is shutting down")
)

// Job is one submitted task: its id and the stored files in submission order.
type Job struct {
	TaskID      string
	Files       []extract.Request
	SubmittedAt time.Time
	RequestID   string
}

// Handler runs a job to a terminal state. It must not panic past its own guard.
type Handler interface {
	Handle(ctx context.Context, job Job)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job)

func (f HandlerFunc) Handle(ctx context.Context, job Job) { f(ctx, job) }

// ProcessorQueue is a fixed pool of workers fed by a buffered channel.
type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds each job's context. It is a backstop for hung
// subprocesses; the task deadline itself is enforced by the handler.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithTaskID(ctx, job.TaskID)
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("handler panicked", "worker_id", workerID, "task_id", job.TaskID, "panic", r)
		}
	}()

	start := time.Now()
	q.handler.Handle(ctx, job)
	q.logger.Info("job finished",
		"worker_id", workerID,
		"task_id", job.TaskID,
		"files", len(job.Files),
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue hands job to a worker without blocking. A full buffer returns ErrQueueFull.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "task_id", job.TaskID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued task for processing", "task_id", job.TaskID, "files", len(job.Files))
		return nil
	default:
		q.logger.Warn("queue full, rejecting task", "task_id", job.TaskID, "capacity", cap(q.ch))
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
