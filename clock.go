package streamtrace

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Clock abstracts the wall-clock and accounting time sources the engine
// reads once per emitted event. Now must be monotonic per trace: the
// engine requires the timestamps it reads within a single trace to be
// non-decreasing. If an injected Clock violates that, sequence numbers
// still define the canonical order.
type Clock interface {
	Now() time.Time
	CPUTime() time.Duration
	WallTime() time.Duration
}

// clockzClock adapts a github.com/zoobzio/clockz.Clock - the same clock
// abstraction the teacher package injects into Tracer - into the Clock
// this package expects. CPUTime and WallTime are approximated as elapsed
// time since the wrapper was constructed, sampled through the same
// injected clock so fake clocks in tests behave deterministically too. Go
// has no portable way to sample real OS rusage without cgo, and nothing
// in the reference corpus carries a dependency that does, so this is an
// explicit approximation rather than a true per-process CPU measurement.
type clockzClock struct {
	clockz.Clock
	start time.Time
}

// WrapClock adapts any clockz.Clock - clockz.RealClock in production, or
// clockz.NewFakeClock()/NewFakeClockAt() in tests - into a Clock.
func WrapClock(c clockz.Clock) Clock {
	return &clockzClock{Clock: c, start: c.Now()}
}

func (c *clockzClock) CPUTime() time.Duration {
	return c.Now().Sub(c.start)
}

func (c *clockzClock) WallTime() time.Duration {
	return c.Now().Sub(c.start)
}

// RealClock returns the production default Clock, backed by the system
// wall clock.
func RealClock() Clock {
	return WrapClock(clockz.RealClock)
}
