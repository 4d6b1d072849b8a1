package quiz

import (
	"sync"
	"time"
)

// Clock abstracts time so countdowns can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f after d and returns a function that cancels it.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Timer is a pausable per-question countdown. It fires onTimeUp at most once
// between two calls to Reset, and pausing keeps the time already spent.
// onTimeUp receives the run that expired so callers can drop a late callback
// once the countdown has been reset for another question.
type Timer struct {
	mu        sync.Mutex
	clock     Clock
	limit     time.Duration
	remaining time.Duration
	startedAt time.Time
	running   bool
	fired     bool
	run       uint64
	stop      func() bool
	onTimeUp  func(run uint64)
}

// NewTimer returns an inactive timer. A non-positive limit disables it.
func NewTimer(clock Clock, limit time.Duration, onTimeUp func(run uint64)) *Timer {
	if clock == nil {
		clock = RealClock()
	}
	return &Timer{
		clock:     clock,
		limit:     limit,
		remaining: limit,
		onTimeUp:  onTimeUp,
	}
}

// Reset rearms the countdown for a new question. The timer stays inactive until SetActive(true).
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.haltLocked()
	t.run++
	t.remaining = t.limit
	t.fired = false
}

// SetActive starts or suspends the countdown.
func (t *Timer) SetActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !active {
		if t.running {
			elapsed := t.clock.Now().Sub(t.startedAt)
			t.haltLocked()
			t.remaining -= elapsed
			if t.remaining < 0 {
				t.remaining = 0
			}
		}
		return
	}
	if t.running || t.fired || t.limit <= 0 {
		return
	}
	t.run++
	run := t.run
	t.running = true
	t.startedAt = t.clock.Now()
	t.stop = t.clock.AfterFunc(t.remaining, func() { t.fire(run) })
}

// Remaining reports the time left on the current question.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.remaining
	}
	left := t.remaining - t.clock.Now().Sub(t.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Fired reports whether the countdown expired for the current question.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Expired reports whether run is the countdown that fired for the current question.
func (t *Timer) Expired(run uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired && t.run == run
}

// Stop cancels any pending expiry for good.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.haltLocked()
	t.run++
}

func (t *Timer) haltLocked() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.running = false
}

func (t *Timer) fire(run uint64) {
	t.mu.Lock()
	if run != t.run || !t.running || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.running = false
	t.remaining = 0
	t.stop = nil
	cb := t.onTimeUp
	t.mu.Unlock()

	if cb != nil {
		cb(run)
	}
}
