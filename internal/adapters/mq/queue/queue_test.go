package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
)

func post(did, rkey string) model.Event {
	return model.Event{ActorDID: did, Collection: model.PostCollection, RecordKey: rkey, CID: did + rkey}
}

func TestShardedQueue_BasicOperations(t *testing.T) {
	q := NewShardedQueue(WithCapacity(4), WithShards(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, post("did:plc:alice", "1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	shard := ShardFor("did:plc:alice", q.Shards())
	got := <-q.Dequeue(ctx, shard)
	if got.RecordKey != "1" {
		t.Errorf("expected rkey 1, got %v", got.RecordKey)
	}
}

func TestShardedQueue_ShardCapacity(t *testing.T) {
	q := NewShardedQueue(WithCapacity(2), WithShards(1))
	ctx := context.Background()

	if !q.Enqueue(ctx, post("a", "1")) || !q.Enqueue(ctx, post("b", "2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, post("c", "3")) {
		t.Error("expected enqueue to fail when full")
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestShardFor_Stable(t *testing.T) {
	for i := 0; i < 100; i++ {
		did := fmt.Sprintf("did:plc:%d", i)
		a, b := ShardFor(did, 16), ShardFor(did, 16)
		if a != b || a < 0 || a >= 16 {
			t.Fatalf("unstable or out of range shard for %s: %d %d", did, a, b)
		}
	}
}

func TestShardedQueue_PerActorOrder(t *testing.T) {
	q := NewShardedQueue(WithCapacity(1000), WithShards(4))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actors := []string{"did:plc:a", "did:plc:b", "did:plc:c", "did:plc:d", "did:plc:e"}
	const perActor = 50
	for i := 0; i < perActor; i++ {
		for _, a := range actors {
			if !q.Enqueue(ctx, post(a, fmt.Sprintf("%03d", i))) {
				t.Fatalf("enqueue failed for %s/%d", a, i)
			}
		}
	}
	_ = q.Close()

	var mu sync.Mutex
	seen := map[string][]string{}
	var wg sync.WaitGroup
	for s := 0; s < q.Shards(); s++ {
		wg.Add(1)
		go func(shard int) {
			defer wg.Done()
			for e := range q.Dequeue(ctx, shard) {
				mu.Lock()
				seen[e.ActorDID] = append(seen[e.ActorDID], e.RecordKey)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	for _, a := range actors {
		keys := seen[a]
		if len(keys) != perActor {
			t.Fatalf("actor %s: expected %d events, got %d", a, perActor, len(keys))
		}
		for i, k := range keys {
			if want := fmt.Sprintf("%03d", i); k != want {
				t.Fatalf("actor %s: event %d out of order: got %s", a, i, k)
			}
		}
	}
}

func TestShardedQueue_Close(t *testing.T) {
	q := NewShardedQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, post("a", "1")) {
		t.Error("expected enqueue to fail after close")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if _, ok := <-q.Dequeue(ctx, 0); ok {
		t.Error("expected dequeue channel to be closed")
	}
}

func TestShardedQueue_CancelledContext(t *testing.T) {
	q := NewShardedQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if q.Enqueue(ctx, post("a", "1")) {
		t.Error("expected enqueue to fail with cancelled context")
	}
}
