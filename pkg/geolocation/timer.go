package geolocation

import (
	"sync"
	"time"
)

// TimeoutTimer is a cancellable one-shot callback.
type TimeoutTimer interface {
	// Arm schedules onFire after d. Only the first Arm on a timer takes effect.
	Arm(d time.Duration, onFire func())
	// Cancel prevents a pending fire. It is a no-op before Arm or after firing.
	Cancel()
}

// TimerFactory creates a fresh TimeoutTimer for each session.
type TimerFactory func() TimeoutTimer

// NewTimer returns a TimeoutTimer backed by time.AfterFunc.
func NewTimer() TimeoutTimer {
	return &wallTimer{}
}

type wallTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (t *wallTimer) Arm(d time.Duration, onFire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(d, onFire)
}

func (t *wallTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
