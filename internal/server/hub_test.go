package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/remoteui/uisync/internal/transport"
)

func targets(events []transport.Event) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Target)
	}
	return out
}

func TestHubPublishFromSkipsOrigin(t *testing.T) {
	h := NewHub(time.Hour)
	h.Touch("a")
	h.Touch("b")

	h.PublishFrom("a", transport.Event{Target: "name", Type: "property"})
	h.Publish(transport.Event{Target: "clock", Type: "property"})
	h.flush()

	ctx := context.Background()
	gotB, _, _ := h.Wait(ctx, "b", time.Second)
	if diff := cmp.Diff([]string{"name", "clock"}, targets(gotB)); diff != "" {
		t.Errorf("session b events mismatch (-want +got):\n%s", diff)
	}
	gotA, _, _ := h.Wait(ctx, "a", time.Second)
	if diff := cmp.Diff([]string{"clock"}, targets(gotA)); diff != "" {
		t.Errorf("session a events mismatch (-want +got):\n%s", diff)
	}
}

func TestHubWaitTimeout(t *testing.T) {
	h := NewHub(time.Millisecond)
	if !h.Touch("a") {
		t.Fatal("Touch of a new session returned false")
	}
	if h.Touch("a") {
		t.Fatal("Touch of a known session returned true")
	}

	start := time.Now()
	events, terminated, _ := h.Wait(context.Background(), "a", 20*time.Millisecond)
	if len(events) != 0 || terminated {
		t.Errorf("Wait = %v, %v; want nothing", events, terminated)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Wait returned before the timeout")
	}
}

func TestHubTerminateWakesWaiter(t *testing.T) {
	h := NewHub(time.Millisecond)
	h.Touch("a")

	type result struct {
		terminated bool
		redirect   string
	}
	done := make(chan result, 1)
	go func() {
		_, terminated, redirect := h.Wait(context.Background(), "a", time.Minute)
		done <- result{terminated, redirect}
	}()

	time.Sleep(10 * time.Millisecond)
	if !h.Terminate("a", "/login") {
		t.Fatal("Terminate of a known session returned false")
	}
	select {
	case r := <-done:
		if !r.terminated || r.redirect != "/login" {
			t.Errorf("Wait = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait not woken by Terminate")
	}

	// Terminated sessions get no further events.
	h.PublishTo("a", transport.Event{Target: "x", Type: "y"})
	if terminated, redirect := h.Terminated("a"); !terminated || redirect != "/login" {
		t.Errorf("Terminated = %v, %q", terminated, redirect)
	}
	if h.Terminate("nobody", "/") {
		t.Error("Terminate of an unknown session returned true")
	}
}

func TestHubExpire(t *testing.T) {
	h := NewHub(time.Millisecond)
	h.Touch("old")
	time.Sleep(20 * time.Millisecond)
	h.Touch("new")

	if n := h.Expire(10 * time.Millisecond); n != 1 {
		t.Errorf("Expire = %d; want 1", n)
	}
	if diff := cmp.Diff([]string{"new"}, h.SessionIDs()); diff != "" {
		t.Errorf("remaining sessions mismatch (-want +got):\n%s", diff)
	}
	if h.SessionCount() != 1 {
		t.Errorf("SessionCount = %d; want 1", h.SessionCount())
	}
}

func TestHubExpireKeepsWaitingSession(t *testing.T) {
	h := NewHub(time.Hour)
	h.Touch("ui-1")

	type result struct {
		events     []transport.Event
		terminated bool
	}
	done := make(chan result, 1)
	go func() {
		events, terminated, _ := h.Wait(context.Background(), "ui-1", time.Minute)
		done <- result{events, terminated}
	}()
	waitFor(t, "poll waiting", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.sessions["ui-1"].waiting == 1
	})

	time.Sleep(20 * time.Millisecond)
	if n := h.Expire(10 * time.Millisecond); n != 0 {
		t.Fatalf("Expire = %d; want 0 while a poll waits", n)
	}

	ev := transport.Event{Target: "clock", Type: "property"}
	h.PublishTo("ui-1", ev)
	select {
	case r := <-done:
		if r.terminated {
			t.Fatal("waiting poll answered as terminated")
		}
		if diff := cmp.Diff([]transport.Event{ev}, r.events); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}

	// The poll counts as activity.
	if n := h.Expire(10 * time.Millisecond); n != 0 {
		t.Errorf("Expire right after a poll = %d; want 0", n)
	}
	if h.Touch("ui-1") {
		t.Error("session was forgotten")
	}
}
