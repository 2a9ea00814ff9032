package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

type enqueuerFunc func(ctx context.Context, job async.Job) error

func (f enqueuerFunc) Enqueue(ctx context.Context, job async.Job) error { return f(ctx, job) }

func newTestService(t *testing.T, q Enqueuer) (*Service, *tasks.MemoryRegistry, *ingest.Store, *export.Archive) {
	t.Helper()
	uploads, err := ingest.NewStore(filepath.Join(t.TempDir(), "uploads"), nil)
	if err != nil {
		t.Fatal(err)
	}
	archive, err := export.NewArchive(filepath.Join(t.TempDir(), "archive"), nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := tasks.NewMemoryRegistry()
	svc := NewService(ServiceConfig{Registry: reg, Queue: q, Uploads: uploads, Archive: archive, MaxBytes: 10 << 20}, nil)
	return svc, reg, uploads, archive
}

func TestSubmitRejectsWithoutState(t *testing.T) {
	var enqueued int
	q := enqueuerFunc(func(context.Context, async.Job) error { enqueued++; return nil })

	tests := []struct {
		name    string
		uploads []ingest.Upload
		wantErr error
	}{
		{"no files", nil, ErrNoFiles},
		{"declared size over limit", []ingest.Upload{
			{Name: "a.pdf", Size: 6 << 20, Content: strings.NewReader("x")},
			{Name: "b.pdf", Size: 5 << 20, Content: strings.NewReader("y")},
		}, ErrPayloadTooLarge},
		{"content larger than declared", []ingest.Upload{
			{Name: "a.txt", Size: 1, Content: strings.NewReader(strings.Repeat("z", 10<<20+1))},
		}, ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, reg, uploads, _ := newTestService(t, q)
			id, err := svc.Submit(context.Background(), tt.uploads)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if id != "" || reg.Active() != 0 {
				t.Fatalf("state created: id=%q active=%d", id, reg.Active())
			}
			assertEmptyDir(t, uploads.Dir())
		})
	}
	if enqueued != 0 {
		t.Fatalf("enqueued %d rejected submissions", enqueued)
	}
}

func TestSubmitExactlyAtLimitAccepted(t *testing.T) {
	var job async.Job
	svc, reg, _, _ := newTestService(t, enqueuerFunc(func(_ context.Context, j async.Job) error { job = j; return nil }))
	svc.maxBytes = 4
	id, err := svc.Submit(context.Background(), []ingest.Upload{upload("a.txt", "ab"), upload("b.txt", "cd")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	task, err := reg.Get(id)
	if err != nil || task.Status != constants.TaskStatusPending {
		t.Fatalf("task = %+v, %v", task, err)
	}
	if job.TaskID != id || len(job.Files) != 2 {
		t.Fatalf("job = %+v", job)
	}
	for i, f := range job.Files {
		if !strings.HasPrefix(filepath.Base(f.Path), id+"_") {
			t.Errorf("file %d not task-qualified: %s", i, f.Path)
		}
		if f.Format != constants.TEXT {
			t.Errorf("file %d format = %s", i, f.Format)
		}
	}
	if job.Files[0].Name != "a.txt" || job.Files[1].Name != "b.txt" {
		t.Fatal("submission order lost")
	}
}

func TestSubmitQueueFullRollsBack(t *testing.T) {
	svc, reg, uploads, _ := newTestService(t, enqueuerFunc(func(context.Context, async.Job) error {
		return async.ErrQueueFull
	}))
	_, err := svc.Submit(context.Background(), []ingest.Upload{upload("a.txt", "hello")})
	if !errors.Is(err, async.ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}
	if reg.Active() != 0 {
		t.Fatal("registry entry not rolled back")
	}
	assertEmptyDir(t, uploads.Dir())
}

func TestStatusUnknownIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, enqueuerFunc(func(context.Context, async.Job) error { return nil }))
	_, err := svc.Status("never-created")
	if !errors.Is(err, tasks.ErrNotFound) || !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestResetRefusesWhileActive(t *testing.T) {
	svc, reg, uploads, archive := newTestService(t, enqueuerFunc(func(context.Context, async.Job) error { return nil }))
	id, err := svc.Submit(context.Background(), []ingest.Upload{upload("a.txt", "x")})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Reset(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Reset while pending = %v", err)
	}

	_, _ = reg.Transition(id, constants.TaskStatusProcessing, "")
	_, _ = reg.Transition(id, constants.TaskStatusCompleted, "done")
	if err := os.WriteFile(filepath.Join(archive.Dir(), "r.docx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := svc.Status(id); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatal("task survived reset")
	}
	assertEmptyDir(t, uploads.Dir())
	assertEmptyDir(t, archive.Dir())
}
