// Package queue holds inbound events between intake and the workers.
//
// Events are spread over shards by actor DID. Each shard is drained by exactly
// one worker, so two events from the same actor are always handled in arrival
// order while different actors proceed in parallel.
package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultShards        = 8
)

// Event represents the payload type flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and per-shard channel dequeue.
type Queue interface {
	// Enqueue adds an event to its actor's shard.
	// Returns false if the shard is full or the queue is closed.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns the channel of one shard. It is closed when the queue is.
	Dequeue(ctx context.Context, shard int) <-chan Event

	// Shards returns the number of shards.
	Shards() int

	// Len returns the current number of queued events across shards.
	Len(ctx context.Context) int

	// Capacity returns the total capacity across shards.
	Capacity() int

	// Close stops intake; consumers drain what is left.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// ShardedQueue implements Queue with one buffered channel per shard.
type ShardedQueue struct {
	shards   []chan Event
	capacity int
	count    int
	size     atomic.Int64
	mu       sync.RWMutex
	closed   bool
}

// NewShardedQueue creates a queue; capacity is split evenly across shards.
func NewShardedQueue(opts ...Option) *ShardedQueue {
	q := &ShardedQueue{
		capacity: defaultQueueCapacity,
		count:    defaultShards,
	}
	for _, opt := range opts {
		opt(q)
	}

	per := (q.capacity + q.count - 1) / q.count
	q.shards = make([]chan Event, q.count)
	for i := range q.shards {
		q.shards[i] = make(chan Event, per)
	}
	q.capacity = per * q.count

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// ShardFor maps a DID to a shard index with FNV-1a.
func ShardFor(did string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(did))
	return int(h.Sum32() % uint32(shards))
}

// Enqueue adds an event to its actor's shard without blocking.
func (q *ShardedQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.shards[ShardFor(e.ActorDID, q.count)] <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(int(q.size.Add(1)))
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "shard_full")
		return false
	}
}

// Dequeue returns a channel receiving the events of one shard in order.
func (q *ShardedQueue) Dequeue(ctx context.Context, shard int) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for event := range q.shards[shard] {
			select {
			case out <- event:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(int(q.size.Add(-1)))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Shards returns the number of shards.
func (q *ShardedQueue) Shards() int { return q.count }

// Len returns the current number of queued events.
func (q *ShardedQueue) Len(context.Context) int {
	n := 0
	for _, s := range q.shards {
		n += len(s)
	}
	return n
}

// Capacity returns the total capacity across shards.
func (q *ShardedQueue) Capacity() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *ShardedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, s := range q.shards {
		close(s)
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *ShardedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
