package remote

import (
	"errors"
	"log"

	"github.com/remoteui/uisync/internal/clock"
)

// Logf is a printf-style logging function.
type Logf func(format string, args ...any)

// Discard is a Logf that drops everything.
func Discard(string, ...any) {}

// Completion delivers the outcome of a request. A non-nil err is a
// transport failure. The returned error is a failure to apply the
// response locally, surfaced to whoever completed the request.
type Completion func(resp *Response, err error) error

// Transport starts one wire exchange and calls done exactly once with its
// outcome. It does not retry, batch or order.
type Transport interface {
	Send(req *Request, done Completion)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(req *Request, done Completion)

func (f TransportFunc) Send(req *Request, done Completion) { f(req, done) }

// Applier replays inbound events against the widget-adapter layer.
type Applier interface {
	Apply(events []InboundEvent) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(events []InboundEvent) error

func (f ApplierFunc) Apply(events []InboundEvent) error { return f(events) }

// Hooks are optional observer callbacks. They run on the session's task
// queue and may call back into the session.
type Hooks struct {
	RequestSent          func(*Request)
	RequestCompleted     func(*Request, *Response)
	RequestFailed        func(*Failure)
	PollFailed           func(*Failure)
	PollingStatusChanged func(from, to PollingStatus)
	ResponseHeld         func(*Response)
	ApplyFailed          func(*ApplyError)
	BusyChanged          func(busy bool)
	SessionTerminated    func(redirectURL string)
	EventsCoalesced      func(n int)
}

// Options configure a Session.
type Options struct {
	// ID is sent with every request as the UI session id.
	ID        string
	Mode      Mode
	Clock     clock.Clock // defaults to clock.Real
	Transport Transport
	Applier   Applier // defaults to discarding inbound events
	Hooks     Hooks
	Logf      Logf // defaults to log.Printf
}

// Session is the event engine of one UI session. It is not safe for
// concurrent use: every method, timer callback and completion must run on a
// single task queue. Client provides that for real transports.
type Session struct {
	id        string
	mode      Mode
	clock     clock.Clock
	transport Transport
	applier   Applier
	hooks     Hooks
	logf      Logf

	sched  Scheduler
	seq    Sequencer
	poller Poller

	lastSeq    uint64
	busy       bool
	terminated bool
	closed     bool
}

// NewSession builds a session. Polling is not started.
func NewSession(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, errors.New("remote: Options.Transport is required")
	}
	s := &Session{
		id:        opts.ID,
		mode:      opts.Mode,
		clock:     opts.Clock,
		transport: opts.Transport,
		applier:   opts.Applier,
		hooks:     opts.Hooks,
		logf:      opts.Logf,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.applier == nil {
		s.applier = ApplierFunc(func([]InboundEvent) error { return nil })
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	s.sched = Scheduler{clock: s.clock, submit: s.submitUser}
	s.seq = Sequencer{
		userPending: func() bool { return s.sched.Pending() != nil },
		apply:       s.apply,
	}
	s.poller = Poller{issue: s.issuePoll, notify: s.pollingStatusChanged}
	return s, nil
}

// ID returns the UI session id.
func (s *Session) ID() string { return s.id }

// Mode returns the mode the session was built with.
func (s *Session) Mode() Mode { return s.mode }

// Enqueue queues ev for sending. It never blocks; the request is cut when
// the send timer fires.
func (s *Session) Enqueue(ev *OutgoingEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}
	if err := s.usable(); err != nil {
		return err
	}
	if n := s.sched.Enqueue(ev); n > 0 && s.hooks.EventsCoalesced != nil {
		s.hooks.EventsCoalesced(n)
	}
	return nil
}

// StartPolling starts the background poll channel. It fails with
// ErrPollingRunning if polling is already running.
func (s *Session) StartPolling() error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.poller.Start()
}

func (s *Session) usable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.mode != ModeRemote:
		return ErrLocalMode
	case s.terminated:
		return ErrTerminated
	}
	return nil
}

// AreRequestsPending reports whether a user request is in flight.
func (s *Session) AreRequestsPending() bool { return s.sched.Pending() != nil }

// AreEventsQueued reports whether unsent events are queued.
func (s *Session) AreEventsQueued() bool { return s.sched.Queue().Len() > 0 }

// AreResponsesQueued reports whether poll responses are held back behind a
// pending user request.
func (s *Session) AreResponsesQueued() bool { return s.seq.Len() > 0 }

// AreBusyIndicatedEventsQueued reports whether a queued event wants the busy
// indicator.
func (s *Session) AreBusyIndicatedEventsQueued() bool { return s.sched.Queue().BusyIndicated() }

// PollingStatus returns the state of the poll channel.
func (s *Session) PollingStatus() PollingStatus { return s.poller.Status() }

// Terminated reports whether the server ended the session.
func (s *Session) Terminated() bool { return s.terminated }

// QueuedEvents returns the unsent events in order.
func (s *Session) QueuedEvents() []*OutgoingEvent { return s.sched.Queue().Events() }

// Snapshot captures the observable state of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		RequestsPending: s.AreRequestsPending(),
		EventsQueued:    s.AreEventsQueued(),
		ResponsesQueued: s.AreResponsesQueued(),
		PollingStatus:   s.poller.Status(),
		QueueLen:        s.sched.Queue().Len(),
		Held:            s.seq.Len(),
		Coalesced:       s.sched.Queue().Coalesced(),
		LastSeq:         s.lastSeq,
		Busy:            s.busy,
		Terminated:      s.terminated,
	}
}

// Close stops the send timer. Completions that arrive afterwards are
// dropped.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.sched.stopTimer()
}

func (s *Session) newRequest(ch Channel, events []*OutgoingEvent) *Request {
	s.lastSeq++
	req := &Request{
		Seq:       s.lastSeq,
		Channel:   ch,
		SessionID: s.id,
		Events:    events,
	}
	for _, ev := range events {
		if !ev.NoBusyIndicator {
			req.ShowBusyIndicator = true
			break
		}
	}
	return req
}

func (s *Session) submitUser(events []*OutgoingEvent) {
	req := s.newRequest(ChannelUser, events)
	s.sched.markPending(req)
	if req.ShowBusyIndicator {
		s.setBusy(true)
	}
	if s.hooks.RequestSent != nil {
		s.hooks.RequestSent(req)
	}
	s.transport.Send(req, func(resp *Response, err error) error {
		return s.onUserResponse(req, resp, err)
	})
}

func (s *Session) issuePoll() {
	req := s.newRequest(ChannelPoll, nil)
	if s.hooks.RequestSent != nil {
		s.hooks.RequestSent(req)
	}
	s.transport.Send(req, func(resp *Response, err error) error {
		return s.onPollResponse(req, resp, err)
	})
}

func (s *Session) onUserResponse(req *Request, resp *Response, err error) error {
	if s.closed {
		return nil
	}
	if s.sched.Pending() != req {
		s.logf("remote: dropping second completion of request %v", req)
		return nil
	}
	resp = normalize(req, resp, err)
	s.sched.complete()

	var applyErr error
	switch resp.Kind {
	case Success:
		if !s.sched.Queue().BusyIndicated() {
			s.setBusy(false)
		}
		_, applyErr = s.seq.OnResponse(ChannelUser, resp)
		if s.hooks.RequestCompleted != nil {
			s.hooks.RequestCompleted(req, resp)
		}
	case SessionTerminated:
		s.setBusy(false)
		applyErr = s.seq.Drain()
		s.terminate(resp.RedirectURL)
	default:
		s.setBusy(false)
		f := &Failure{Request: req, Kind: resp.Kind, Err: resp.Err}
		s.logf("%v", f)
		if s.hooks.RequestFailed != nil {
			s.hooks.RequestFailed(f)
		}
		applyErr = s.seq.Drain()
	}
	if !s.terminated && !s.closed {
		s.sched.resume()
	}
	return applyErr
}

func (s *Session) onPollResponse(req *Request, resp *Response, err error) error {
	if s.closed {
		return nil
	}
	resp = normalize(req, resp, err)

	var applyErr error
	switch resp.Kind {
	case Success:
		var held bool
		held, applyErr = s.seq.OnResponse(ChannelPoll, resp)
		if held && s.hooks.ResponseHeld != nil {
			s.hooks.ResponseHeld(resp)
		}
	case SessionTerminated:
		s.logf("remote: session terminated, stopped polling")
	default:
		f := &Failure{Request: req, Kind: resp.Kind, Err: resp.Err}
		s.logf("remote: polling interrupted: %v", f)
		if s.hooks.PollFailed != nil {
			s.hooks.PollFailed(f)
		}
	}
	s.poller.received(resp.Kind)
	if resp.Kind == SessionTerminated {
		s.terminate(resp.RedirectURL)
	}
	return applyErr
}

// apply replays resp's events. A failure marks the response and, on the
// poll channel, moves polling to PollingFailure.
func (s *Session) apply(ch Channel, resp *Response) error {
	if len(resp.Events) == 0 {
		return nil
	}
	err := s.applier.Apply(resp.Events)
	if err == nil {
		return nil
	}
	resp.RaisedDuringApply = true
	aerr := &ApplyError{Seq: resp.Seq, Channel: ch, Err: err}
	if ch == ChannelPoll {
		s.poller.fail()
	}
	s.logf("%v", aerr)
	if s.hooks.ApplyFailed != nil {
		s.hooks.ApplyFailed(aerr)
	}
	return aerr
}

func (s *Session) terminate(redirectURL string) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.sched.stopTimer()
	s.poller.stop()
	if s.hooks.SessionTerminated != nil {
		s.hooks.SessionTerminated(redirectURL)
	}
}

func (s *Session) setBusy(busy bool) {
	if s.busy == busy {
		return
	}
	s.busy = busy
	if s.hooks.BusyChanged != nil {
		s.hooks.BusyChanged(busy)
	}
}

func (s *Session) pollingStatusChanged(from, to PollingStatus) {
	if s.hooks.PollingStatusChanged != nil {
		s.hooks.PollingStatusChanged(from, to)
	}
}

func normalize(req *Request, resp *Response, err error) *Response {
	if err != nil {
		return &Response{Seq: req.Seq, Kind: TransportFailure, Err: err}
	}
	if resp == nil {
		return &Response{Seq: req.Seq, Kind: TransportFailure, Err: errors.New("remote: transport returned no response")}
	}
	if resp.Seq == 0 {
		resp.Seq = req.Seq
	}
	return resp
}

// Snapshot is a point-in-time view of a session's observable state.
type Snapshot struct {
	RequestsPending bool
	EventsQueued    bool
	ResponsesQueued bool
	PollingStatus   PollingStatus
	QueueLen        int
	Held            int
	Coalesced       int
	LastSeq         uint64
	Busy            bool
	Terminated      bool
}
