package remote

import (
	"context"
	"sync"
	"time"

	"github.com/remoteui/uisync/internal/clock"
)

// Loop runs functions one at a time, in the order they were added. It is
// the task queue a Session lives on when driven by real goroutines. The zero
// value is not usable; call NewLoop.
type Loop struct {
	mu       sync.Mutex
	closed   bool
	inFlight bool
	queue    []func()
	done     chan struct{} // closed by Shutdown
}

func NewLoop() *Loop {
	return &Loop{done: make(chan struct{})}
}

// Add queues f. It never blocks. Functions added after Shutdown are
// dropped.
func (q *Loop) Add(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.inFlight {
		q.queue = append(q.queue, f)
		return
	}
	q.inFlight = true
	go q.run(f)
}

func (q *Loop) run(f func()) {
	f()
	q.mu.Lock()
	for len(q.queue) > 0 && !q.closed {
		f = q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()
		f()
		q.mu.Lock()
	}
	q.inFlight = false
	q.queue = nil
	q.mu.Unlock()
}

// RunSync runs f on the loop and waits for it to return. It must not be
// called from a function running on the loop.
func (q *Loop) RunSync(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}
	q.Add(func() {
		defer close(ran)
		f()
	})
	select {
	case <-ran:
		return nil
	case <-q.done:
		// f may still have run if Shutdown raced with it.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every function added before the call has run.
func (q *Loop) Wait(ctx context.Context) error {
	return q.RunSync(ctx, func() {})
}

// Shutdown drops queued functions and refuses new ones. A function already
// running is allowed to finish.
func (q *Loop) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.queue = nil
	close(q.done)
}

// loopClock delivers timer callbacks through post instead of on the timer
// goroutine.
type loopClock struct {
	clock.Clock
	post func(func())
}

func (c loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.Clock.AfterFunc(d, func() { c.post(f) })
}
