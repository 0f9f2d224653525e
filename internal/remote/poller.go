package remote

import "fmt"

// PollingStatus is the state of the background poll channel.
type PollingStatus int

const (
	PollingStopped PollingStatus = iota
	PollingRunning
	PollingFailure
)

func (s PollingStatus) String() string {
	switch s {
	case PollingStopped:
		return "stopped"
	case PollingRunning:
		return "running"
	case PollingFailure:
		return "failure"
	default:
		return fmt.Sprintf("polling(%d)", int(s))
	}
}

func (s PollingStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Poller drives the background poll channel. It keeps at most one poll
// request in flight and never leaves PollingFailure on its own.
type Poller struct {
	status   PollingStatus
	inFlight bool

	issue  func()                      // sends one poll request
	notify func(from, to PollingStatus) // may be nil
}

// Status returns the current polling status.
func (p *Poller) Status() PollingStatus { return p.status }

// InFlight reports whether a poll request is outstanding.
func (p *Poller) InFlight() bool { return p.inFlight }

// Start moves to PollingRunning and issues a poll request unless one is
// already outstanding.
func (p *Poller) Start() error {
	if p.status == PollingRunning {
		return ErrPollingRunning
	}
	p.set(PollingRunning)
	p.next()
	return nil
}

// received records the outcome of the outstanding poll request. A
// successful poll is followed by the next one while polling is running.
func (p *Poller) received(kind ResponseKind) {
	p.inFlight = false
	switch kind {
	case Success:
		if p.status == PollingRunning {
			p.next()
		}
	case TransportFailure, ApplicationFailure:
		p.set(PollingFailure)
	case SessionTerminated:
		p.set(PollingStopped)
	}
}

// fail records a local failure while applying a poll response.
func (p *Poller) fail() {
	if p.status == PollingRunning {
		p.set(PollingFailure)
	}
}

// stop moves to PollingStopped without issuing anything further.
func (p *Poller) stop() {
	p.set(PollingStopped)
}

func (p *Poller) next() {
	if p.inFlight {
		return
	}
	p.inFlight = true
	p.issue()
}

func (p *Poller) set(to PollingStatus) {
	from := p.status
	if from == to {
		return
	}
	p.status = to
	if p.notify != nil {
		p.notify(from, to)
	}
}
