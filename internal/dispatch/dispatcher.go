package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/metrics"
	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/pkg/logger"
)

var (
	ErrQueueFull = errors.New("dispatch queue is full")
	ErrStopped   = errors.New("dispatcher is stopped")
)

type Processor interface {
	ProcessQuery(ctx context.Context, q *models.Query) error
}

// Dispatcher is the explicit handoff between the HTTP layer and the
// orchestrator: handlers enqueue and return immediately, workers drain the
// queue. Pipeline failures are logged and counted instead of silently
// swallowed by an un-awaited call.
type Dispatcher struct {
	processor Processor
	queue     chan *models.Query
	workers   int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func New(processor Processor, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}

	return &Dispatcher{
		processor: processor,
		queue:     make(chan *models.Query, queueSize),
		workers:   workers,
	}
}

// Start launches the worker pool. Call with a cancellable context; workers
// also exit once Stop closes the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}

	logger.Info("Dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

func (d *Dispatcher) run(ctx context.Context, id int) {
	defer d.wg.Done()

	for q := range d.queue {
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))

		if err := d.processor.ProcessQuery(ctx, q); err != nil {
			metrics.DeadLetterTotal.Inc()
			logger.Error("Query pipeline ended in failure",
				zap.Int("worker", id),
				zap.String("query_id", q.ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) Enqueue(q *models.Query) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- q:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for workers to drain what was accepted.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()

	logger.Info("Dispatcher stopped")
}
