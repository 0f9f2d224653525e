package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/remoteui/uisync/internal/remote"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// ErrNotConnected is returned while a failed dial is backing off.
var ErrNotConnected = errors.New("ws: not connected")

type wsResult struct {
	resp *Response
	err  error
}

// WSTransport multiplexes requests over one WebSocket connection. Responses
// are matched to requests by sequence number. The connection is dialed on
// first use; after a failed dial, requests fail fast until the backoff
// delay has passed. Like HTTPTransport, user requests and polls each have
// their own timeout.
type WSTransport struct {
	url         string
	token       string
	dialer      *websocket.Dialer
	timeout     time.Duration
	pollTimeout time.Duration

	// Logf defaults to log.Printf.
	Logf remote.Logf

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes (requests, pings)
	conn     *websocket.Conn
	dialing  chan struct{} // closed when the dial in progress ends
	waiters  map[uint64]chan wsResult
	pingStop context.CancelFunc
	delay    time.Duration
	nextDial time.Time
	closed   bool
}

var _ remote.RoundTripper = (*WSTransport)(nil)

// NewWSTransport creates a transport for the given ws:// URL. Zero timeouts
// use the defaults.
func NewWSTransport(url, token string, timeout, pollTimeout time.Duration) *WSTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &WSTransport{
		url:         url,
		token:       token,
		dialer:      websocket.DefaultDialer,
		timeout:     timeout,
		pollTimeout: pollTimeout,
		waiters:     make(map[uint64]chan wsResult),
	}
}

func (t *WSTransport) logf(format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// RoundTrip writes req and waits for the response with the same sequence
// number. A dropped connection fails every outstanding request.
func (t *WSTransport) RoundTrip(ctx context.Context, req *remote.Request) (*remote.Response, error) {
	timeout := t.timeout
	if req.Channel == remote.ChannelPoll {
		timeout = t.pollTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan wsResult, 1)
	t.mu.Lock()
	t.waiters[req.Seq] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.waiters, req.Seq)
		t.mu.Unlock()
	}()

	t.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(EncodeRequest(req))
	t.writeMu.Unlock()
	if err != nil {
		t.drop(conn, err)
		return nil, fmt.Errorf("ws write: %w", err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return DecodeResponse(r.resp), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("ws: request #%d: %w", req.Seq, ctx.Err())
	}
}

// connect returns the open connection or dials one. The dial runs without
// t.mu held; concurrent callers wait for it instead of dialing twice.
func (t *WSTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	for t.dialing != nil && !t.closed && t.conn == nil {
		dialing := t.dialing
		t.mu.Unlock()
		select {
		case <-dialing:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		t.mu.Lock()
	}
	if t.closed {
		t.mu.Unlock()
		return nil, net.ErrClosed
	}
	if conn := t.conn; conn != nil {
		t.mu.Unlock()
		return conn, nil
	}
	if wait := time.Until(t.nextDial); wait > 0 {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w (retry in %v)", ErrNotConnected, wait.Round(time.Millisecond))
	}
	dialing := make(chan struct{})
	t.dialing = dialing
	t.mu.Unlock()

	var hdr http.Header
	if t.token != "" {
		hdr = http.Header{"Authorization": {"Bearer " + t.token}}
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, hdr)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialing = nil
	close(dialing)
	if err != nil {
		if t.delay == 0 {
			t.delay = reconnectBaseDelay
		} else {
			t.delay = min(t.delay*2, reconnectMaxDelay)
		}
		t.nextDial = time.Now().Add(t.delay)
		t.logf("ws dial error: %v (retry in %v)", err, t.delay)
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	if t.closed {
		conn.Close()
		return nil, net.ErrClosed
	}
	t.delay = 0
	t.nextDial = time.Time{}

	pingCtx, pingCancel := context.WithCancel(context.Background())
	t.conn = conn
	t.pingStop = pingCancel
	go t.pingLoop(pingCtx, conn)
	go t.readLoop(conn)
	return conn, nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.drop(conn, err)
			return
		}
		var w Response
		if err := json.Unmarshal(data, &w); err != nil {
			t.logf("ws: bad frame: %v", err)
			continue
		}
		t.mu.Lock()
		ch, ok := t.waiters[w.Seq]
		delete(t.waiters, w.Seq)
		t.mu.Unlock()
		if !ok {
			t.logf("ws: response #%d has no waiter", w.Seq)
			continue
		}
		ch <- wsResult{resp: &w}
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (t *WSTransport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			cc := t.conn
			t.mu.Unlock()
			if cc != conn {
				return
			}
			t.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// drop forgets conn and fails every outstanding request.
func (t *WSTransport) drop(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	if t.pingStop != nil {
		t.pingStop()
		t.pingStop = nil
	}
	waiters := t.waiters
	t.waiters = make(map[uint64]chan wsResult)
	t.mu.Unlock()

	conn.Close()
	err := fmt.Errorf("ws connection lost: %w", cause)
	for _, ch := range waiters {
		ch <- wsResult{err: err}
	}
}

// Connected reports whether a connection is open.
func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Close closes the connection. Outstanding requests fail.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		t.drop(conn, net.ErrClosed)
	}
	return nil
}
