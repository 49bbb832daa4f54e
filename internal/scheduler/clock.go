package scheduler

import "time"

// Clock abstracts the tick timer so tests can drive rounds without real
// sleeps.
type Clock interface {
	// After returns a channel that fires once after d.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall-clock implementation used in production.
func RealClock() Clock { return realClock{} }

// FakeClock delivers ticks on demand. Step blocks until the scheduler is
// waiting on the clock, so after Step returns the previous tick (including
// any settlement it triggered) has fully completed.
type FakeClock struct {
	ticks chan time.Time
}

// NewFakeClock creates a manually driven clock.
func NewFakeClock() *FakeClock {
	return &FakeClock{ticks: make(chan time.Time)}
}

func (c *FakeClock) After(time.Duration) <-chan time.Time { return c.ticks }

// Step fires one tick.
func (c *FakeClock) Step() { c.ticks <- time.Now() }
