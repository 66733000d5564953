package query

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Deadline is a timeout budget that can be shared by several queries.
//
// The budget starts counting on the first call to Start (Evaluate calls it);
// later starts are no-ops. Queries sharing a Deadline therefore consume one
// budget: a chain of assertions "within 5s" fails once 5s have passed since
// the first of them began, however the time was split between them.
type Deadline struct {
	clock   clock.Clock
	initial time.Duration

	mu      sync.Mutex
	started bool
	start   time.Time
}

// NewDeadline creates a deadline with the given timeout. A timeout <= 0
// means "evaluate once, never wait". A nil clock means the real clock.
func NewDeadline(timeout time.Duration, clk clock.Clock) *Deadline {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Deadline{clock: clk, initial: timeout}
}

// NoWait returns a deadline that never waits.
func NoWait() *Deadline {
	return NewDeadline(0, nil)
}

// Start begins the countdown if it has not begun yet and returns the
// start time.
func (d *Deadline) Start() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		d.started = true
		d.start = d.clock.Now()
	}
	return d.start
}

// Started reports whether Start was called.
func (d *Deadline) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Initial returns the full timeout the deadline was created with.
func (d *Deadline) Initial() time.Duration {
	return d.initial
}

// Remaining returns the time left, never negative. Before Start it is the
// full timeout.
func (d *Deadline) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return d.initial
	}
	left := d.initial - d.clock.Since(d.start)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether a started deadline has no time left.
func (d *Deadline) Expired() bool {
	return d.Started() && d.Remaining() == 0
}

// At returns the absolute expiry time. It is the zero time before Start.
func (d *Deadline) At() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return time.Time{}
	}
	return d.start.Add(d.initial)
}

// Clock returns the clock the deadline measures time with.
func (d *Deadline) Clock() clock.Clock {
	return d.clock
}
