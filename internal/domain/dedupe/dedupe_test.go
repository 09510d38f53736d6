package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/affirmbot/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, "bafy-1")

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, "bafy-1")
				seen := d.SeenAndRecord(ctx, "bafy-1")

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When ledger keys are built per effect", func() {
			d := dedupe.NewInMemoryDeduper()
			reply := dedupe.Key("bafy-1", "reply")
			repost := dedupe.Key("bafy-1", "repost")

			Convey("Then effects of one event are tracked independently", func() {
				So(reply, ShouldNotEqual, repost)
				So(d.Seen(ctx, reply), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, reply), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, repost), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, reply), ShouldBeTrue)
				So(d.Seen(ctx, repost), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When unrecording a key", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "bafy-1")
			d.Unrecord(ctx, "bafy-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "bafy-1"), ShouldBeFalse)
			})
		})

		Convey("When the bounded ledger is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"a", "b", "c", "d"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}

			Convey("Then the oldest key is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a slot was freed by Unrecord before wrapping", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "c")

			Convey("Then the size stays consistent", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			})
		})

		Convey("When the empty key is recorded and evicted", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, ""), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "x"), ShouldBeFalse)

			Convey("Then the bound still holds", func() {
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then every key is kept", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
				d.Unrecord(ctx, "k-0")
				So(d.Size(), ShouldEqual, int64(n-1))
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When each key is claimed by racing goroutines", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			winners := 0

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d", j)) {
							mu.Lock()
							winners++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one goroutine wins each key", func() {
				So(winners, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, int64(perGoroutine))
			})
		})
	})
}
