package debounce

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock whose time only moves on Advance. Due callbacks run
// synchronously on the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock  *ManualClock
	when   time.Time
	f      func()
	active bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, when: c.now.Add(d), f: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	wasActive := t.active
	t.active = false
	return wasActive
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward by d and runs every callback that became due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.when
		next.active = false
		c.mu.Unlock()

		next.f()
	}
}

// ActiveTimers counts scheduled callbacks that have neither fired nor been stopped.
func (c *ManualClock) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	return n
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.active {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].when.Before(c.timers[j].when)
	})
	if len(c.timers) == 0 || c.timers[0].when.After(target) {
		return nil
	}
	return c.timers[0]
}
