package clock

import (
	"sync"
	"time"
)

// FakeClock is a manual Clock for tests. Time only moves on Advance,
// which runs due AfterFunc callbacks on the calling goroutine.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]fakeTimer
}

type fakeTimer struct {
	due time.Time
	f   func()
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start, timers: make(map[uint64]fakeTimer)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc runs f once the clock reaches now+d. A non-positive d runs f
// before AfterFunc returns, as a due retraction restored at startup must.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	c.seq++
	id := c.seq
	c.timers[id] = fakeTimer{due: c.now.Add(d), f: f}
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, pending := c.timers[id]
		delete(c.timers, id)
		return pending
	}}
}

// Advance moves the clock forward by d, firing due timers one at a time
// in deadline order (ties in scheduling order). Callbacks may schedule or
// stop timers but must not call Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		f, ok := c.popDue()
		if !ok {
			return
		}
		f()
	}
}

func (c *FakeClock) popDue() (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		next  uint64
		found bool
	)
	for id, t := range c.timers {
		if t.due.After(c.now) {
			continue
		}
		if !found || t.due.Before(c.timers[next].due) || (t.due.Equal(c.timers[next].due) && id < next) {
			next, found = id, true
		}
	}
	if !found {
		return nil, false
	}
	f := c.timers[next].f
	delete(c.timers, next)
	return f, true
}
