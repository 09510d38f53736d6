package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/affirmbot/internal/adapters/mq/queue"
	worker "github.com/okian/affirmbot/internal/adapters/mq/worker"
	model "github.com/okian/affirmbot/internal/domain/model"
	logging "github.com/okian/affirmbot/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	panics map[string]bool
}

func (r *recorder) Process(_ context.Context, e model.Event) {
	if r.panics[e.RecordKey] {
		panic("boom")
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func post(did string, i int) model.Event {
	return model.Event{ActorDID: did, Collection: model.PostCollection, RecordKey: fmt.Sprintf("%03d", i)}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a sharded queue", t, func() {
		_ = logging.InitWithWriter(io.Discard, "text")
		q := queue.NewShardedQueue(queue.WithCapacity(1000), queue.WithShards(3))
		rec := &recorder{}
		pool := worker.NewPool(q, rec)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When events from several actors are enqueued", func() {
			for i := 0; i < 30; i++ {
				for _, did := range []string{"did:plc:a", "did:plc:b", "did:plc:c", "did:plc:d"} {
					convey.So(q.Enqueue(ctx, post(did, i)), convey.ShouldBeTrue)
				}
			}

			convey.Convey("Then each actor's events are processed in order", func() {
				convey.So(waitFor(func() bool { return rec.count() == 120 }), convey.ShouldBeTrue)
				last := map[string]string{}
				rec.mu.Lock()
				for _, e := range rec.events {
					convey.So(e.RecordKey > last[e.ActorDID], convey.ShouldBeTrue)
					last[e.ActorDID] = e.RecordKey
				}
				rec.mu.Unlock()
				convey.So(pool.Processed(), convey.ShouldEqual, 120)
			})
		})

		convey.Convey("When the pool shuts down with events left", func() {
			for i := 0; i < 10; i++ {
				q.Enqueue(ctx, post("did:plc:z", i))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed and drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(rec.count(), convey.ShouldEqual, 10)
			})
		})
	})
}

func TestWorkerPanicRecovery(t *testing.T) {
	convey.Convey("Given a processor that panics on one event", t, func() {
		_ = logging.InitWithWriter(io.Discard, "text")
		q := queue.NewShardedQueue(queue.WithShards(1))
		rec := &recorder{panics: map[string]bool{"001": true}}
		w := worker.NewInMemoryWorker(q, 0, rec, worker.WithName("test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		for i := 0; i < 3; i++ {
			q.Enqueue(ctx, post("did:plc:a", i))
		}

		convey.Convey("Then the worker keeps going", func() {
			convey.So(waitFor(func() bool { return rec.count() == 2 }), convey.ShouldBeTrue)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(w.Processed(), convey.ShouldEqual, 2)
		})
	})
}

type slowProcessor struct {
	delay time.Duration
	done  atomic.Int32
}

func (p *slowProcessor) Process(context.Context, model.Event) {
	time.Sleep(p.delay)
	p.done.Add(1)
}

func TestPoolShutdownDeadline(t *testing.T) {
	convey.Convey("Given a single-shard pool with slow work queued", t, func() {
		_ = logging.InitWithWriter(io.Discard, "text")
		q := queue.NewShardedQueue(queue.WithShards(1))
		p := &slowProcessor{delay: 100 * time.Millisecond}
		pool := worker.NewPool(q, p)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		for i := 0; i < 5; i++ {
			q.Enqueue(ctx, post("did:plc:a", i))
		}

		convey.Convey("When shutdown has less time than the backlog needs", func() {
			sctx, scancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer scancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then the deadline is reported and the worker stops early", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				time.Sleep(350 * time.Millisecond)
				convey.So(int(p.done.Load()), convey.ShouldBeLessThan, 5)
			})
		})

		convey.Convey("When shutdown has enough time", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued event is finished", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(int(p.done.Load()), convey.ShouldEqual, 5)
			})
		})
	})
}

func TestProcessorFunc(t *testing.T) {
	convey.Convey("Given a processor function", t, func() {
		var got string
		p := worker.ProcessorFunc(func(_ context.Context, e model.Event) { got = e.RecordKey })
		p.Process(context.Background(), post("did:plc:a", 7))
		convey.So(got, convey.ShouldEqual, "007")
	})
}
