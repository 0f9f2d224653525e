package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/remoteui/uisync/internal/transport"
)

type uiSession struct {
	queue      []transport.Event
	changed    chan struct{} // closed and replaced when queue or state changes
	terminated bool
	redirect   string
	lastSeen   time.Time
	waiting    int // polls blocked in Wait
}

func (s *uiSession) signal() {
	close(s.changed)
	s.changed = make(chan struct{})
}

type pendingEvent struct {
	origin string // session that caused the event; it is not sent back there
	ev     transport.Event
}

// Hub holds server-initiated events per UI session until a poll request
// collects them. Broadcasts are throttled: events published within one
// throttle window reach the sessions together.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*uiSession
	throttle time.Duration

	flushMu    sync.Mutex
	pending    []pendingEvent
	flushTimer *time.Timer
}

func NewHub(throttle time.Duration) *Hub {
	return &Hub{
		sessions: make(map[string]*uiSession),
		throttle: throttle,
	}
}

// Touch registers the session if needed and reports whether it is new.
func (h *Hub) Touch(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		s = &uiSession{changed: make(chan struct{})}
		h.sessions[id] = s
	}
	s.lastSeen = time.Now()
	return !ok
}

// Publish queues events for every session, sent on the next flush.
func (h *Hub) Publish(events ...transport.Event) {
	h.PublishFrom("", events...)
}

// PublishFrom queues events for every session except origin.
func (h *Hub) PublishFrom(origin string, events ...transport.Event) {
	if len(events) == 0 {
		return
	}
	h.flushMu.Lock()
	defer h.flushMu.Unlock()

	for _, ev := range events {
		h.pending = append(h.pending, pendingEvent{origin: origin, ev: ev})
	}
	if h.flushTimer == nil {
		h.flushTimer = time.AfterFunc(h.throttle, h.flush)
	}
}

// PublishTo queues events for one session immediately.
func (h *Hub) PublishTo(id string, events ...transport.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok || s.terminated {
		return
	}
	s.queue = append(s.queue, events...)
	s.signal()
}

func (h *Hub) flush() {
	h.flushMu.Lock()
	pending := h.pending
	h.pending = nil
	h.flushTimer = nil
	h.flushMu.Unlock()

	if len(pending) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		if s.terminated {
			continue
		}
		n := len(s.queue)
		for _, p := range pending {
			if p.origin != id {
				s.queue = append(s.queue, p.ev)
			}
		}
		if len(s.queue) > n {
			s.signal()
		}
	}
}

// Wait blocks until the session has events, is terminated, timeout elapses
// or ctx is done, and hands over whatever is queued. A session is not
// expired while a poll waits on it.
func (h *Hub) Wait(ctx context.Context, id string, timeout time.Duration) (events []transport.Event, terminated bool, redirect string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if !ok {
		h.mu.Unlock()
		return nil, false, ""
	}
	s.waiting++
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		s.waiting--
		s.lastSeen = time.Now()
		h.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		h.mu.Lock()
		if s.terminated {
			h.mu.Unlock()
			return nil, true, s.redirect
		}
		if len(s.queue) > 0 {
			events, s.queue = s.queue, nil
			h.mu.Unlock()
			return events, false, ""
		}
		changed := s.changed
		h.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return nil, false, ""
		case <-ctx.Done():
			return nil, false, ""
		}
	}
}

// Terminate ends a UI session. Its next request is answered with
// sessionTerminated and the given redirect URL.
func (h *Hub) Terminate(id, redirect string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return false
	}
	s.terminated = true
	s.redirect = redirect
	s.queue = nil
	s.signal()
	return true
}

// Terminated reports whether the session was terminated, and its redirect.
func (h *Hub) Terminated(id string) (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return false, ""
	}
	return s.terminated, s.redirect
}

// Expire forgets sessions not seen for longer than maxIdle. Sessions with a
// poll in Wait are kept.
func (h *Hub) Expire(maxIdle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	cutoff := time.Now().Add(-maxIdle)
	for id, s := range h.sessions {
		if s.waiting == 0 && s.lastSeen.Before(cutoff) {
			s.terminated = true
			s.signal()
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// SessionIDs returns the known session ids.
func (h *Hub) SessionIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ExpireEvery calls Expire on each interval until ctx is done.
func (h *Hub) ExpireEvery(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Expire(maxIdle); n > 0 {
				log.Printf("expired %d idle UI sessions", n)
			}
		}
	}
}
