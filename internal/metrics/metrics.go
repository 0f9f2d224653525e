// Package metrics exports Prometheus metrics for the event engine and the
// reference server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remoteui/uisync/internal/remote"
)

const (
	channelKey = "channel"
	kindKey    = "kind"
	codeKey    = "code"
)

// Client collects metrics from a session's hooks.
type Client struct {
	requests      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	latency       prometheus.Histogram
	held          prometheus.Counter
	applyFailures *prometheus.CounterVec
	coalesced     prometheus.Counter
	pollingStatus prometheus.Gauge
	busy          prometheus.Gauge

	mu   sync.Mutex
	sent map[uint64]time.Time
}

func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Requests sent, by channel.",
		}, []string{channelKey}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "request_failures_total",
			Help:      "Failed requests, by channel and failure kind.",
		}, []string{channelKey, kindKey}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "user_request_latency_seconds",
			Help:      "User request round trip time.",
			// 15 buckets from 1ms to 30s.
			Buckets: prometheus.ExponentialBucketsRange(0.001, 30, 15),
		}),
		held: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "held_responses_total",
			Help:      "Poll responses held behind a pending user request.",
		}),
		applyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "apply_failures_total",
			Help:      "Responses whose events failed to apply, by channel.",
		}, []string{channelKey}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "coalesced_events_total",
			Help:      "Queued events dropped by coalescing.",
		}),
		pollingStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "polling_status",
			Help:      "Polling status: 0 stopped, 1 running, 2 failure.",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uisync",
			Subsystem: "client",
			Name:      "busy",
			Help:      "1 while a busy-indicated request is in flight.",
		}),
		sent: make(map[uint64]time.Time),
	}
	reg.MustRegister(m.requests, m.failures, m.latency, m.held, m.applyFailures, m.coalesced, m.pollingStatus, m.busy)
	return m
}

// Hooks returns next with every hook wrapped to record metrics first.
func (m *Client) Hooks(next remote.Hooks) remote.Hooks {
	h := next
	h.RequestSent = func(req *remote.Request) {
		m.requests.WithLabelValues(req.Channel.String()).Inc()
		if req.Channel == remote.ChannelUser {
			m.mu.Lock()
			m.sent[req.Seq] = time.Now()
			m.mu.Unlock()
		}
		if next.RequestSent != nil {
			next.RequestSent(req)
		}
	}
	h.RequestCompleted = func(req *remote.Request, resp *remote.Response) {
		m.observe(req)
		if next.RequestCompleted != nil {
			next.RequestCompleted(req, resp)
		}
	}
	h.RequestFailed = func(f *remote.Failure) {
		m.observe(f.Request)
		m.failures.WithLabelValues(remote.ChannelUser.String(), f.Kind.String()).Inc()
		if next.RequestFailed != nil {
			next.RequestFailed(f)
		}
	}
	h.PollFailed = func(f *remote.Failure) {
		m.failures.WithLabelValues(remote.ChannelPoll.String(), f.Kind.String()).Inc()
		if next.PollFailed != nil {
			next.PollFailed(f)
		}
	}
	h.ResponseHeld = func(resp *remote.Response) {
		m.held.Inc()
		if next.ResponseHeld != nil {
			next.ResponseHeld(resp)
		}
	}
	h.ApplyFailed = func(err *remote.ApplyError) {
		m.applyFailures.WithLabelValues(err.Channel.String()).Inc()
		if next.ApplyFailed != nil {
			next.ApplyFailed(err)
		}
	}
	h.EventsCoalesced = func(n int) {
		m.coalesced.Add(float64(n))
		if next.EventsCoalesced != nil {
			next.EventsCoalesced(n)
		}
	}
	h.PollingStatusChanged = func(from, to remote.PollingStatus) {
		m.pollingStatus.Set(float64(to))
		if next.PollingStatusChanged != nil {
			next.PollingStatusChanged(from, to)
		}
	}
	h.BusyChanged = func(busy bool) {
		if busy {
			m.busy.Set(1)
		} else {
			m.busy.Set(0)
		}
		if next.BusyChanged != nil {
			next.BusyChanged(busy)
		}
	}
	return h
}

func (m *Client) observe(req *remote.Request) {
	m.mu.Lock()
	start, ok := m.sent[req.Seq]
	delete(m.sent, req.Seq)
	m.mu.Unlock()
	if ok {
		m.latency.Observe(time.Since(start).Seconds())
	}
}

// Server collects metrics for the reference server.
type Server struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	pushed   prometheus.Counter
	sessions prometheus.Gauge
	wsConns  prometheus.Gauge
}

func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests handled, by channel.",
		}, []string{channelKey}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "server",
			Name:      "error_responses_total",
			Help:      "Application error responses, by code.",
		}, []string{codeKey}),
		pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uisync",
			Subsystem: "server",
			Name:      "pushed_events_total",
			Help:      "Server-initiated events delivered to poll requests.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uisync",
			Subsystem: "server",
			Name:      "ui_sessions",
			Help:      "UI sessions known to the push hub.",
		}),
		wsConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uisync",
			Subsystem: "server",
			Name:      "ws_connections",
			Help:      "Open WebSocket connections.",
		}),
	}
	reg.MustRegister(m.requests, m.errors, m.pushed, m.sessions, m.wsConns)
	return m
}

// The Server methods are no-ops on a nil receiver.

func (m *Server) Request(poll bool) {
	if m == nil {
		return
	}
	ch := remote.ChannelUser
	if poll {
		ch = remote.ChannelPoll
	}
	m.requests.WithLabelValues(ch.String()).Inc()
}

func (m *Server) ErrorResponse(code int) {
	if m != nil {
		m.errors.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func (m *Server) Pushed(n int) {
	if m != nil {
		m.pushed.Add(float64(n))
	}
}

func (m *Server) Sessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

func (m *Server) WSConnected() {
	if m != nil {
		m.wsConns.Inc()
	}
}

func (m *Server) WSDisconnected() {
	if m != nil {
		m.wsConns.Dec()
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
