package remote

import "time"

// QueuedEvent is an outgoing event together with the time it was enqueued.
type QueuedEvent struct {
	Event      *OutgoingEvent
	EnqueuedAt time.Time
}

// Deadline is the latest time the event may be sent.
func (q QueuedEvent) Deadline() time.Time {
	return q.EnqueuedAt.Add(q.Event.Delay)
}

// ReduceQueue applies the coalesce rules to events as if they had been
// enqueued one by one in order: every event with a Coalesce func removes all
// earlier surviving events it matches. The input is not modified.
func ReduceQueue(events []QueuedEvent) []QueuedEvent {
	out := make([]QueuedEvent, 0, len(events))
	for _, qe := range events {
		out = coalesceInto(out, qe.Event)
		out = append(out, qe)
	}
	return out
}

// coalesceInto filters queued in place, dropping events superseded by next.
func coalesceInto(queued []QueuedEvent, next *OutgoingEvent) []QueuedEvent {
	if next.Coalesce == nil {
		return queued
	}
	kept := queued[:0]
	for _, qe := range queued {
		if !next.Coalesce(next, qe.Event) {
			kept = append(kept, qe)
		}
	}
	clear(queued[len(kept):])
	return kept
}

// NextDeadline returns the earliest deadline among events. ok is false when
// events is empty.
func NextDeadline(events []QueuedEvent) (deadline time.Time, ok bool) {
	for i, qe := range events {
		if d := qe.Deadline(); i == 0 || d.Before(deadline) {
			deadline = d
		}
	}
	return deadline, len(events) > 0
}

// SplitBatch cuts the next request off the front of events. The cut is
// placed before the first event, other than the very first one, that asks
// for a new request.
func SplitBatch(events []QueuedEvent) (batch, rest []QueuedEvent) {
	n := len(events)
	for i := 1; i < len(events); i++ {
		if events[i].Event.NewRequest {
			n = i
			break
		}
	}
	return events[:n], events[n:]
}

// Queue holds events that have not been sent yet.
type Queue struct {
	events    []QueuedEvent
	coalesced int
}

// Add coalesces ev against the queued events and appends it. It returns how
// many queued events ev superseded.
func (q *Queue) Add(ev *OutgoingEvent, now time.Time) int {
	before := len(q.events)
	q.events = coalesceInto(q.events, ev)
	dropped := before - len(q.events)
	q.coalesced += dropped
	q.events = append(q.events, QueuedEvent{Event: ev, EnqueuedAt: now})
	return dropped
}

func (q *Queue) Len() int { return len(q.events) }

// Deadline is NextDeadline over the queued events.
func (q *Queue) Deadline() (time.Time, bool) {
	return NextDeadline(q.events)
}

// Cut removes the next batch from the queue and returns it. It returns nil
// when the queue is empty.
func (q *Queue) Cut() []*OutgoingEvent {
	if len(q.events) == 0 {
		return nil
	}
	batch, rest := SplitBatch(q.events)
	out := make([]*OutgoingEvent, len(batch))
	for i, qe := range batch {
		out[i] = qe.Event
	}
	q.events = append([]QueuedEvent(nil), rest...)
	return out
}

// BusyIndicated reports whether any queued event wants the busy indicator.
func (q *Queue) BusyIndicated() bool {
	for _, qe := range q.events {
		if !qe.Event.NoBusyIndicator {
			return true
		}
	}
	return false
}

// Events returns the queued events in order.
func (q *Queue) Events() []*OutgoingEvent {
	out := make([]*OutgoingEvent, len(q.events))
	for i, qe := range q.events {
		out[i] = qe.Event
	}
	return out
}

// Coalesced is the number of events dropped by coalescing so far.
func (q *Queue) Coalesced() int { return q.coalesced }
