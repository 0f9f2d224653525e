// Package clocktest provides a manually advanced clock.Clock for tests.
package clocktest

import (
	"container/heap"
	"sync"
	"time"

	"github.com/remoteui/uisync/internal/clock"
)

// Start is the default starting time of a new Clock.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a fake clock.Clock. Time only moves when Advance is called, and
// timers fire synchronously on the goroutine calling Advance, in deadline
// order (ties in registration order).
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers timerHeap
}

var _ clock.Clock = (*Clock)(nil)

// New returns a Clock set to Start.
func New() *Clock {
	return &Clock{now: Start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) clock.Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &Timer{c: c, at: c.now.Add(d), id: c.nextID, f: f, index: -1}
	heap.Push(&c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that comes due,
// including timers registered by callbacks during the advance. It returns
// the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	target := c.now.Add(d)
	for len(c.timers) > 0 && !c.timers[0].at.After(target) {
		t := heap.Pop(&c.timers).(*Timer)
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
	return target
}

// Pending reports how many timers are armed.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Timer is returned by Clock.AfterFunc.
type Timer struct {
	c     *Clock
	at    time.Time
	id    uint64
	f     func()
	index int // position in the heap, -1 once fired or stopped
}

func (t *Timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.c.timers, t.index)
	return true
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
