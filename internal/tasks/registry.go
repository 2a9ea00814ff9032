package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

var (
	ErrNotFound           = fmt.Errorf("task %w", common.ErrNotFound)
	ErrAlreadyExists      = fmt.Errorf("task already exists: %w", common.ErrConflict)
	ErrInvalidTransition  = errors.New("invalid task transition")
	ErrProgressRegression = errors.New("progress regression")
	ErrInvalidProgress    = errors.New("progress out of range")
)

// Task is a point-in-time snapshot of one extraction job.
type Task struct {
	ID         string
	Status     constants.TaskStatus
	Progress   int
	Result     string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Registry is the store polled by callers and written by one worker per task.
type Registry interface {
	Create(id string) (Task, error)
	// Transition moves a task along pending -> processing -> terminal. result is
	// stored when entering a terminal state. It reports false without error when
	// the task is already terminal.
	Transition(id string, to constants.TaskStatus, result string) (bool, error)
	// UpdateProgress only accepts values above the current one, within 0..100.
	UpdateProgress(id string, pct int) error
	Get(id string) (Task, error)
	Delete(id string)
	Clear()
	// Active counts tasks that have not reached a terminal state.
	Active() int
	// Sweep evicts terminal tasks finished more than the TTL before now.
	Sweep(now time.Time) int
}

// MemoryRegistry keeps tasks in a map guarded by a RWMutex.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*MemoryRegistry)

// WithTTL sets how long terminal tasks are kept. Zero disables eviction.
func WithTTL(d time.Duration) Option {
	return func(r *MemoryRegistry) {
		if d >= 0 {
			r.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *MemoryRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewMemoryRegistry(opts ...Option) *MemoryRegistry {
	r := &MemoryRegistry{
		tasks: make(map[string]*Task),
		ttl:   time.Hour,
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *MemoryRegistry) Create(id string) (Task, error) {
	if id == "" {
		return Task{}, fmt.Errorf("create task: %w", common.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; ok {
		return Task{}, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	t := &Task{ID: id, Status: constants.TaskStatusPending, CreatedAt: r.now()}
	r.tasks[id] = t
	return *t, nil
}

func (r *MemoryRegistry) Transition(id string, to constants.TaskStatus, result string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status.IsTerminal() {
		return false, nil
	}
	switch {
	case t.Status == constants.TaskStatusPending && to == constants.TaskStatusProcessing:
		t.Status = to
		t.StartedAt = r.now()
	case t.Status == constants.TaskStatusProcessing && to.IsTerminal():
		t.Status = to
		t.Result = result
		t.FinishedAt = r.now()
		if to == constants.TaskStatusCompleted {
			t.Progress = 100
		}
	default:
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	return true, nil
}

func (r *MemoryRegistry) UpdateProgress(id string, pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, pct)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status != constants.TaskStatusProcessing {
		return fmt.Errorf("%w: progress update while %s", ErrInvalidTransition, t.Status)
	}
	if pct <= t.Progress {
		return fmt.Errorf("%w: %d after %d", ErrProgressRegression, pct, t.Progress)
	}
	t.Progress = pct
	return nil
}

func (r *MemoryRegistry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

func (r *MemoryRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

func (r *MemoryRegistry) Clear() {
	r.mu.Lock()
	r.tasks = make(map[string]*Task)
	r.mu.Unlock()
}

func (r *MemoryRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tasks {
		if !t.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (r *MemoryRegistry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, t := range r.tasks {
		if t.Status.IsTerminal() && now.Sub(t.FinishedAt) > r.ttl {
			delete(r.tasks, id)
			n++
		}
	}
	return n
}

// RunJanitor sweeps reg every interval until ctx is done.
func RunJanitor(ctx context.Context, reg Registry, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := reg.Sweep(now); n > 0 {
				logger.Info("evicted expired tasks", "count", n)
			}
		}
	}
}
