package remote

import (
	"time"

	"github.com/remoteui/uisync/internal/clock"
)

// Scheduler decides when the outgoing queue is cut into a user request. It
// owns the send timer and the pending request; at most one user request is
// pending at a time.
type Scheduler struct {
	clock clock.Clock
	queue Queue

	timer    clock.Timer
	timerAt  time.Time
	timerGen uint64

	pending *Request

	// submit turns a batch into a request, marks it pending and hands it to
	// the transport.
	submit func(events []*OutgoingEvent)
}

// Enqueue adds ev to the queue and pulls the send deadline forward if ev
// comes due earlier. It returns the number of events ev coalesced away.
func (s *Scheduler) Enqueue(ev *OutgoingEvent) int {
	dropped := s.queue.Add(ev, s.clock.Now())
	if s.pending == nil {
		s.arm()
	}
	return dropped
}

// Pending returns the user request in flight, or nil.
func (s *Scheduler) Pending() *Request { return s.pending }

// Queue exposes the outgoing queue.
func (s *Scheduler) Queue() *Queue { return &s.queue }

// markPending records req as the request in flight.
func (s *Scheduler) markPending(req *Request) { s.pending = req }

// complete clears the pending request.
func (s *Scheduler) complete() { s.pending = nil }

// resume schedules the next flush once no request is pending: immediately
// if the queue's deadline has passed, otherwise when it comes due.
func (s *Scheduler) resume() {
	if s.pending != nil {
		return
	}
	deadline, ok := s.queue.Deadline()
	if !ok {
		return
	}
	if !deadline.After(s.clock.Now()) {
		s.flush()
		return
	}
	s.arm()
}

// arm (re)arms the timer for the queue's deadline. An armed timer is only
// ever moved earlier.
func (s *Scheduler) arm() {
	deadline, ok := s.queue.Deadline()
	if !ok {
		s.stopTimer()
		return
	}
	if s.timer != nil && !deadline.Before(s.timerAt) {
		return
	}
	s.stopTimer()
	d := deadline.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timerGen++
	gen := s.timerGen
	s.timerAt = deadline
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	if gen != s.timerGen || s.timer == nil {
		// Stopped or superseded after the callback was already queued.
		return
	}
	s.timer = nil
	if s.pending != nil {
		// Deferred until the pending response arrives.
		return
	}
	s.flush()
}

// flush cuts one batch and submits it. The request is pending before
// control returns.
func (s *Scheduler) flush() {
	s.stopTimer()
	batch := s.queue.Cut()
	if len(batch) == 0 {
		return
	}
	s.submit(batch)
}

func (s *Scheduler) stopTimer() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.timerGen++
}
