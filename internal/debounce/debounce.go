// Package debounce provides a cancellable fire-once timer: only the last Trigger in
// a burst survives, and it fires after the quiet period has elapsed with no further
// Trigger. A stopped Debouncer never fires again.
package debounce

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Production code uses the wall clock; tests use
// ManualClock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer.
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns a Clock backed by time.AfterFunc.
func RealClock() Clock {
	return realClock{}
}

type Option func(*Debouncer)

func WithClock(c Clock) Option {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// Debouncer publishes the most recent value after the quiet period.
type Debouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	fn      func(string)
	timer   Timer
	value   string
	pending bool
	seq     uint64
	stopped bool
}

func New(delay time.Duration, fn func(value string), opts ...Option) *Debouncer {
	d := &Debouncer{
		clock: RealClock(),
		delay: delay,
		fn:    fn,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger records value and restarts the quiet period, cancelling any pending fire.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.value = value
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// fire runs on the timer goroutine. The seq check drops a callback whose timer was
// replaced after it had already started.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	value := d.value
	d.mu.Unlock()

	d.fn(value)
}

// Cancel drops the pending fire, if any, and reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer) cancelLocked() bool {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	wasPending := d.pending
	d.pending = false
	return wasPending
}

// Take cancels the pending fire and returns its value to the caller instead.
func (d *Debouncer) Take() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	value := d.value
	if !d.cancelLocked() {
		return "", false
	}
	return value, true
}

// Flush fires the pending value now, skipping the rest of the quiet period.
func (d *Debouncer) Flush() bool {
	value, ok := d.Take()
	if !ok {
		return false
	}
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return false
	}
	d.fn(value)
	return true
}

// Pending reports whether a fire is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending fire and disables the Debouncer permanently.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}
