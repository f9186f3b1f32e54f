package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/canna-agent/backend/internal/storage/models"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []string
	err       error
}

func (p *recordingProcessor) ProcessQuery(ctx context.Context, q *models.Query) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, q.ID)
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func TestDispatcherProcessesEnqueuedQueries(t *testing.T) {
	proc := &recordingProcessor{}
	d := New(proc, 8, 2)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		q := &models.Query{ID: string(rune('a' + i)), Status: models.QueryStatusPending}
		if err := d.Enqueue(q); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	d.Stop()

	if proc.count() != 3 {
		t.Errorf("expected 3 processed queries, got %d", proc.count())
	}
}

func TestDispatcherSurvivesProcessorErrors(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("pipeline failed")}
	d := New(proc, 8, 1)
	d.Start(context.Background())

	if err := d.Enqueue(&models.Query{ID: "q-1"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := d.Enqueue(&models.Query{ID: "q-2"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	d.Stop()

	if proc.count() != 2 {
		t.Errorf("a failing pipeline must not stop the workers, processed %d", proc.count())
	}
}

func TestEnqueueAfterStopRejected(t *testing.T) {
	proc := &recordingProcessor{}
	d := New(proc, 8, 1)
	d.Start(context.Background())
	d.Stop()

	err := d.Enqueue(&models.Query{ID: "late"})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	proc := &recordingProcessor{}
	// Workers never started, so the queue fills up.
	d := New(proc, 1, 1)

	if err := d.Enqueue(&models.Query{ID: "first"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	err := d.Enqueue(&models.Query{ID: "second"})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestStopDrainsBacklog(t *testing.T) {
	proc := &recordingProcessor{}
	d := New(proc, 16, 1)

	for i := 0; i < 10; i++ {
		if err := d.Enqueue(&models.Query{ID: "q"}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not drain the backlog in time")
	}

	if proc.count() != 10 {
		t.Errorf("expected backlog of 10 drained, got %d", proc.count())
	}
}
