package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecoinvest/internal/domain/dedupe"
)

// record reserves and commits id, reporting whether it was new.
func record(d dedupe.Deduper, id string) bool {
	if d.Reserve(context.Background(), id) != dedupe.New {
		return false
	}
	d.Commit(context.Background(), id)
	return true
}

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a default deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When an event ID is reserved", func() {
			So(d.Reserve(ctx, "evt-1"), ShouldEqual, dedupe.New)

			Convey("Then a second reservation sees it pending, not seen", func() {
				So(d.Reserve(ctx, "evt-1"), ShouldEqual, dedupe.Pending)
				So(d.Size(), ShouldEqual, 0)
			})

			Convey("Then after Commit it is seen", func() {
				d.Commit(ctx, "evt-1")
				So(d.Reserve(ctx, "evt-1"), ShouldEqual, dedupe.Seen)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then after Release it can be reserved again", func() {
				d.Release(ctx, "evt-1")
				So(d.Reserve(ctx, "evt-1"), ShouldEqual, dedupe.New)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When an unknown ID is released", func() {
			d.Release(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.Reserve(ctx, "missing"), ShouldEqual, dedupe.New)
			})
		})

		Convey("Then statuses print by name", func() {
			So(dedupe.Pending.String(), ShouldEqual, "pending")
			So(dedupe.Status(9).String(), ShouldEqual, "unknown")
		})
	})

	Convey("Given a deduper bounded to three IDs", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c", "d"} {
			So(record(d, id), ShouldBeTrue)
		}

		Convey("Then the oldest ID is evicted first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.Reserve(ctx, "d"), ShouldEqual, dedupe.Seen)
			So(d.Reserve(ctx, "c"), ShouldEqual, dedupe.Seen)
			So(d.Reserve(ctx, "a"), ShouldEqual, dedupe.New)
		})

		Convey("When a reservation is held while others commit", func() {
			So(d.Reserve(ctx, "held"), ShouldEqual, dedupe.New)
			for _, id := range []string{"e", "f", "g", "h"} {
				So(record(d, id), ShouldBeTrue)
			}

			Convey("Then the reservation is not evicted", func() {
				So(d.Reserve(ctx, "held"), ShouldEqual, dedupe.Pending)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			record(d, fmt.Sprintf("evt-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.Reserve(ctx, "evt-0"), ShouldEqual, dedupe.Seen)
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on the same IDs", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if record(d, fmt.Sprintf("evt-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each ID is fresh exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
