// Package worker drains queue shards and hands each event to a processor.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/affirmbot/internal/adapters/mq/queue"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Processor handles one event to completion. It must not panic out.
type Processor interface {
	Process(ctx context.Context, e Event)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, e Event)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, e Event) { f(ctx, e) }

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context, shard int) <-chan Event
	Shards() int
}

// Worker processes the events of one shard in order.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the shard closes.
	Run(ctx context.Context)

	// Shutdown waits for the worker to finish its shard. If ctx ends first
	// the worker is told to stop after the event in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one queue shard.
type InMemoryWorker struct {
	queue     Queue
	shard     int
	processor Processor
	name      string
	processed atomic.Int64

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker for shard of queue.
func NewInMemoryWorker(q Queue, shard int, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		shard:     shard,
		processor: p,
		name:      "worker-" + strconv.Itoa(shard),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop. Events already dequeued are finished before it
// returns; the processor sees ctx and stops early on cancellation.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx, w.shard)
	for {
		// A stop request wins over events that are ready.
		select {
		case <-w.shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, event)
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, event Event) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "processor panicked",
				logger.String("event", event.ID()),
				logger.Any("panic", r))
		}
	}()
	w.processor.Process(ctx, event)
	w.processed.Add(1)
}

// Processed returns the number of events this worker finished.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Shutdown waits for the worker to drain its shard, which ends once the
// queue is closed. When ctx ends first the worker is signalled to stop after
// the event in hand and the timeout is returned.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}
	w.stopOnce.Do(func() { close(w.shutdown) })
	w.logger.Warn(ctx, "shutdown timed out, stopping with events left")
	return fmt.Errorf("shutdown timed out: %w", ctx.Err())
}

// Pool runs one worker per queue shard.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool with one worker per shard of q.
func NewPool(q Queue, p Processor) *Pool {
	pool := &Pool{
		workers: make([]*InMemoryWorker, q.Shards()),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(q, i, p)
	}
	metrics.UpdateWorkerCount(len(pool.workers))
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of events finished across workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue and lets workers drain their shards. Workers still
// busy when the deadline passes are stopped early.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %d: %w", i, err)
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
