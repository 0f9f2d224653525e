package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(ctx context.Context, req *Request) (*Response, error)

func (f roundTripFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoopRunsInOrder(t *testing.T) {
	q := NewLoop()
	defer q.Shutdown()
	var got []int
	for i := range 100 {
		q.Add(func() { got = append(got, i) })
	}
	if err := q.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d", i, v)
		}
	}
	if len(got) != 100 {
		t.Errorf("ran %d functions; want 100", len(got))
	}
}

func TestLoopShutdown(t *testing.T) {
	q := NewLoop()
	q.RunSync(context.Background(), func() { q.Shutdown() })
	if err := q.RunSync(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("RunSync after Shutdown = %v; want ErrClosed", err)
	}
}

func TestClientSendsAndApplies(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []*Request
		applied  []InboundEvent
	)
	rt := roundTripFunc(func(ctx context.Context, req *Request) (*Response, error) {
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		return &Response{Kind: Success, Events: []InboundEvent{{Target: "1", Type: "ack"}}}, nil
	})
	c, err := NewClient(ClientOptions{
		RoundTripper: rt,
		Applier: ApplierFunc(func(evs []InboundEvent) error {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, evs...)
			return nil
		}),
		Logf: t.Logf,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.SessionID() == "" {
		t.Fatal("empty session id")
	}

	for _, typ := range []string{"a", "b", "c"} {
		if err := c.Enqueue(&OutgoingEvent{Target: "1", Type: typ}); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WhenIdle(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	var sent []string
	for _, r := range requests {
		if r.SessionID != c.SessionID() {
			t.Errorf("request %v has session id %q", r, r.SessionID)
		}
		sent = append(sent, types(r.Events)...)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, sent); diff != "" {
		t.Errorf("sent events mismatch (-want +got):\n%s", diff)
	}
	if len(applied) != len(requests) {
		t.Errorf("applied %d events for %d requests", len(applied), len(requests))
	}
}

func TestClientResumesPolling(t *testing.T) {
	var (
		mu    sync.Mutex
		polls int
	)
	rt := roundTripFunc(func(ctx context.Context, req *Request) (*Response, error) {
		if req.Channel == ChannelUser {
			return &Response{Kind: Success}, nil
		}
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection reset")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c, err := NewClient(ClientOptions{RoundTripper: rt, ResumePolling: true, Logf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.StartPolling(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "polling failure", func() bool { return c.PollingStatus() == PollingFailure })

	if err := c.Enqueue(&OutgoingEvent{Target: "1", Type: "click"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "polling resumed", func() bool { return c.PollingStatus() == PollingRunning })
	waitFor(t, "second poll", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return polls == 2
	})
}

func TestClientClose(t *testing.T) {
	rt := roundTripFunc(func(ctx context.Context, req *Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c, err := NewClient(ClientOptions{RoundTripper: rt, Logf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	c.Enqueue(&OutgoingEvent{Target: "1", Type: "a"})
	waitFor(t, "request pending", c.AreRequestsPending)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Enqueue(&OutgoingEvent{Target: "1", Type: "b"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Close = %v; want ErrClosed", err)
	}
	if err := c.WhenIdle(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("WhenIdle after Close = %v; want ErrClosed", err)
	}
}

func TestClientLocalMode(t *testing.T) {
	c, err := NewClient(ClientOptions{
		Mode:         ModeLocal,
		RoundTripper: roundTripFunc(func(context.Context, *Request) (*Response, error) { return nil, nil }),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Enqueue(&OutgoingEvent{Target: "1", Type: "a"}); !errors.Is(err, ErrLocalMode) {
		t.Errorf("Enqueue = %v; want ErrLocalMode", err)
	}
}
