package geotest

import (
	"sort"
	"sync"
	"time"

	"github.com/go-drift/geolocation/pkg/geolocation"
)

// FakeClock provides controllable time and timers for deterministic tests.
// All methods are safe for concurrent use.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*FakeTimer
}

// NewFakeClock returns a FakeClock starting at a fixed epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the clock to an exact time without firing timers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and fires, in deadline order, every
// armed timer whose deadline has been reached. Callbacks run on the calling
// goroutine after the clock's lock is released.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*FakeTimer
	for _, t := range c.timers {
		if !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.onFire()
	}
}

// NewTimer returns a timer driven by this clock. It has the signature of a
// geolocation.TimerFactory.
func (c *FakeClock) NewTimer() geolocation.TimeoutTimer {
	return &FakeTimer{clock: c}
}

// Pending returns the number of armed timers that have neither fired nor
// been cancelled.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// FakeTimer is a geolocation.TimeoutTimer driven by a FakeClock.
type FakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	onFire   func()
	armed    bool
	fired    bool
	canceled bool
}

// Arm schedules onFire at now+d. Only the first call has an effect.
func (t *FakeTimer) Arm(d time.Duration, onFire func()) {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.armed {
		return
	}
	t.armed = true
	t.deadline = c.now.Add(d)
	t.onFire = onFire
	c.timers = append(c.timers, t)
}

// Cancel removes a pending timer. It is a no-op before Arm or after firing.
func (t *FakeTimer) Cancel() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.armed || t.fired || t.canceled {
		return
	}
	t.canceled = true
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
}

// Canceled reports whether Cancel removed the timer before it fired.
func (t *FakeTimer) Canceled() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.canceled
}
