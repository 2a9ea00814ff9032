package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func TestQueueRunsJobsAndDrains(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	h := HandlerFunc(func(ctx context.Context, job Job) {
		if common.TaskIDFromContext(ctx) != job.TaskID {
			t.Errorf("task id not propagated to context")
		}
		mu.Lock()
		seen = append(seen, job.TaskID)
		mu.Unlock()
	})
	q := NewProcessorQueue(h, nil, WithWorkers(2), WithQueueSize(8))
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(context.Background(), Job{TaskID: id, SubmittedAt: time.Now()}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("handled %v", seen)
	}
	if err := q.Enqueue(context.Background(), Job{TaskID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("enqueue after shutdown = %v", err)
	}
}

func TestQueueFullRejects(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	h := HandlerFunc(func(context.Context, Job) {
		started <- struct{}{}
		<-release
	})
	q := NewProcessorQueue(h, nil, WithWorkers(1), WithQueueSize(1))

	if err := q.Enqueue(context.Background(), Job{TaskID: "running"}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := q.Enqueue(context.Background(), Job{TaskID: "buffered"}); err != nil {
		t.Fatal(err)
	}
	err := q.Enqueue(context.Background(), Job{TaskID: "rejected"})
	if !errors.Is(err, ErrQueueFull) || !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	close(release)
	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueueSurvivesHandlerPanic(t *testing.T) {
	done := make(chan string, 2)
	h := HandlerFunc(func(_ context.Context, job Job) {
		if job.TaskID == "bad" {
			panic("boom")
		}
		done <- job.TaskID
	})
	q := NewProcessorQueue(h, nil, WithWorkers(1))
	_ = q.Enqueue(context.Background(), Job{TaskID: "bad"})
	_ = q.Enqueue(context.Background(), Job{TaskID: "good"})

	select {
	case id := <-done:
		if id != "good" {
			t.Fatalf("got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after panic")
	}
	q.Shutdown(context.Background())
}

func TestProcessTimeoutBoundsContext(t *testing.T) {
	got := make(chan time.Duration, 1)
	h := HandlerFunc(func(ctx context.Context, _ Job) {
		dl, ok := ctx.Deadline()
		if !ok {
			got <- -1
			return
		}
		got <- time.Until(dl)
	})
	q := NewProcessorQueue(h, nil, WithWorkers(1), WithProcessTimeout(time.Minute))
	_ = q.Enqueue(context.Background(), Job{TaskID: "x"})
	if d := <-got; d <= 0 || d > time.Minute {
		t.Fatalf("remaining = %v", d)
	}
	q.Shutdown(context.Background())
}
