package ratelimit_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/ratelimit"
)

// fakeClock lets tests move time explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGovernor(t *testing.T) {
	Convey("Given a governor with an injected clock", t, func() {
		clock := newFakeClock()
		g := ratelimit.New(ratelimit.WithClock(clock))

		const (
			maxAttempts = 100
			window      = 60 * time.Second
		)

		Convey("When calls stay within the quota", func() {
			var last ratelimit.Decision
			for i := 0; i < maxAttempts; i++ {
				last = g.Check("client:browse", maxAttempts, window)
				So(last.Allowed, ShouldBeTrue)
			}

			Convey("Then the 100th call should be allowed with zero remaining", func() {
				So(last.Remaining, ShouldEqual, 0)
			})

			Convey("And the 101st call should be denied with a positive retryAfter", func() {
				d := g.Check("client:browse", maxAttempts, window)
				So(d.Allowed, ShouldBeFalse)
				So(d.RetryAfter, ShouldBeGreaterThan, 0)
				So(d.ResetAt, ShouldHappenAfter, clock.Now())
			})

			Convey("And after the window elapses a fresh window should open", func() {
				g.Check("client:browse", maxAttempts, window) // denied
				clock.Advance(window)
				d := g.Check("client:browse", maxAttempts, window)
				So(d.Allowed, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, maxAttempts-1)
			})
		})

		Convey("When the window resets", func() {
			g.Check("k", 2, window)
			g.Check("k", 2, window)
			clock.Advance(window)

			Convey("Then the counter should restart wholesale, not drain", func() {
				d := g.Check("k", 2, window)
				So(d.Allowed, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 1)
			})
		})

		Convey("When different keys share the governor", func() {
			d1 := g.Check("a", 1, window)
			d2 := g.Check("b", 1, window)

			Convey("Then their windows should be independent", func() {
				So(d1.Allowed, ShouldBeTrue)
				So(d2.Allowed, ShouldBeTrue)
				So(g.Check("a", 1, window).Allowed, ShouldBeFalse)
				So(g.Check("b", 1, window).Allowed, ShouldBeFalse)
			})
		})

		Convey("When many goroutines hit one key concurrently", func() {
			const workers = 50
			allowed := make(chan bool, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					allowed <- g.Check("hot", 10, window).Allowed
				}()
			}
			wg.Wait()
			close(allowed)

			count := 0
			for ok := range allowed {
				if ok {
					count++
				}
			}

			Convey("Then exactly maxAttempts should be admitted", func() {
				So(count, ShouldEqual, 10)
			})
		})
	})
}

func TestGovernorSweep(t *testing.T) {
	Convey("Given a governor with a one-hour retention", t, func() {
		clock := newFakeClock()
		g := ratelimit.New(
			ratelimit.WithClock(clock),
			ratelimit.WithRetention(time.Hour),
		)

		Convey("When entries go idle past the horizon", func() {
			for i := 0; i < 5; i++ {
				g.Check(fmt.Sprintf("idle-%d", i), 10, time.Minute)
			}
			clock.Advance(2 * time.Hour)
			g.Check("active", 10, time.Minute)

			removed := g.Sweep()

			Convey("Then only the idle entries should be purged", func() {
				So(removed, ShouldEqual, 5)
				So(g.Len(), ShouldEqual, 1)
			})

			Convey("Then the active window should be unaffected", func() {
				d := g.Check("active", 10, time.Minute)
				So(d.Allowed, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 8)
			})
		})
	})
}

func TestGovernorProfiles(t *testing.T) {
	Convey("Given resource-scoped profiles", t, func() {
		clock := newFakeClock()
		g := ratelimit.New(ratelimit.WithClock(clock))

		browse := ratelimit.Profile{Name: "browse", MaxAttempts: 100, Window: time.Minute}
		llm := ratelimit.Profile{Name: "llm", MaxAttempts: 2, Window: time.Minute}

		Convey("When the same client hits both resource classes", func() {
			for i := 0; i < 2; i++ {
				So(g.CheckProfile("client-1", llm).Allowed, ShouldBeTrue)
			}

			Convey("Then the strict quota should deny while the lenient one admits", func() {
				So(g.CheckProfile("client-1", llm).Allowed, ShouldBeFalse)
				So(g.CheckProfile("client-1", browse).Allowed, ShouldBeTrue)
			})
		})
	})
}
