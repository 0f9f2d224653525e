package remote

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/remoteui/uisync/internal/clock"
)

// RoundTripper performs one blocking wire exchange. Implementations live in
// the transport package.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// ClientOptions configure a Client.
type ClientOptions struct {
	// ID is the UI session id. A random UUID is used if empty.
	ID           string
	Mode         Mode
	RoundTripper RoundTripper

	// Applier runs on the client's loop goroutine. It must not call the
	// blocking Client methods.
	Applier Applier
	Hooks   Hooks
	Logf    Logf
	Clock   clock.Clock

	// ResumePolling restarts polling after a successful user request if a
	// failure had interrupted it.
	ResumePolling bool
}

// Client is a goroutine-safe front for a Session. The session runs on a Loop;
// each request's round trip runs on its own goroutine and posts its outcome
// back to the loop.
type Client struct {
	loop *Loop
	sess *Session
	rt   RoundTripper
	logf Logf

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // round trips in flight

	mu      sync.Mutex
	snap    Snapshot
	inbox   int // Enqueue calls not yet run on the loop
	closed  bool
	changed chan struct{} // closed and replaced on every publish
}

// NewClient builds a Client. Polling is not started.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.RoundTripper == nil {
		return nil, errors.New("remote: ClientOptions.RoundTripper is required")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		loop:    NewLoop(),
		rt:      opts.RoundTripper,
		logf:    opts.Logf,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}

	hooks := opts.Hooks
	if opts.ResumePolling {
		completed := hooks.RequestCompleted
		hooks.RequestCompleted = func(req *Request, resp *Response) {
			if completed != nil {
				completed(req, resp)
			}
			if !resp.RaisedDuringApply && c.sess.PollingStatus() == PollingFailure {
				c.logf("remote: resuming polling after %v", req)
				if err := c.sess.StartPolling(); err != nil {
					c.logf("remote: resume polling: %v", err)
				}
			}
		}
	}

	sess, err := NewSession(Options{
		ID:        opts.ID,
		Mode:      opts.Mode,
		Clock:     loopClock{Clock: opts.Clock, post: c.post},
		Transport: TransportFunc(c.send),
		Applier:   opts.Applier,
		Hooks:     hooks,
		Logf:      opts.Logf,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	c.sess = sess
	c.snap = sess.Snapshot()
	return c, nil
}

// SessionID returns the UI session id sent with every request.
func (c *Client) SessionID() string { return c.sess.ID() }

// post runs f on the loop and publishes the resulting snapshot.
func (c *Client) post(f func()) {
	c.loop.Add(func() {
		f()
		c.publish()
	})
}

func (c *Client) publish() { c.publishDequeued(0) }

// publishDequeued publishes the session state and retires n Enqueue calls
// under one lock.
func (c *Client) publishDequeued(n int) {
	snap := c.sess.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox -= n
	c.snap = snap
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Client) send(req *Request, done Completion) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Timeouts are the transport's policy; ctx only ends with Close.
		resp, err := c.rt.RoundTrip(c.ctx, req)
		c.post(func() {
			// Apply errors were already reported through the hooks.
			done(resp, err)
		})
	}()
}

// Enqueue validates ev and hands it to the session without blocking. It may
// be called from hooks and appliers.
func (c *Client) Enqueue(ev *OutgoingEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	closed, snap := c.closed, c.snap
	c.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case c.sess.Mode() != ModeRemote:
		return ErrLocalMode
	case snap.Terminated:
		return ErrTerminated
	}
	c.mu.Lock()
	c.inbox++
	c.mu.Unlock()
	c.loop.Add(func() {
		if err := c.sess.Enqueue(ev); err != nil {
			c.logf("remote: dropped %v: %v", ev, err)
		}
		c.publishDequeued(1)
	})
	return nil
}

// StartPolling starts the background poll channel and waits for the
// session to accept it.
func (c *Client) StartPolling(ctx context.Context) error {
	var err error
	if lerr := c.loop.RunSync(ctx, func() {
		err = c.sess.StartPolling()
		c.publish()
	}); lerr != nil {
		return lerr
	}
	return err
}

// Snapshot returns the session state as of the last task run on the loop.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapLocked()
}

// Changed returns a channel that is closed when the next snapshot is
// published.
func (c *Client) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Client) snapLocked() Snapshot {
	snap := c.snap
	if c.inbox > 0 {
		snap.EventsQueued = true
	}
	return snap
}

func (c *Client) AreRequestsPending() bool { return c.Snapshot().RequestsPending }
func (c *Client) AreEventsQueued() bool    { return c.Snapshot().EventsQueued }
func (c *Client) AreResponsesQueued() bool { return c.Snapshot().ResponsesQueued }

func (c *Client) PollingStatus() PollingStatus { return c.Snapshot().PollingStatus }

// WhenIdle blocks until no user request is pending, nothing is queued and
// nothing is held.
func (c *Client) WhenIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		snap, changed, closed := c.snapLocked(), c.changed, c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}
		if !snap.RequestsPending && !snap.EventsQueued && !snap.ResponsesQueued {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close aborts in-flight round trips and stops the session. Outcomes that
// arrive afterwards are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	c.cancel()
	err := c.loop.RunSync(context.Background(), c.sess.Close)
	c.wg.Wait()
	c.loop.Shutdown()
	return err
}
