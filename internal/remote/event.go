// Package remote is the client-side event transport of a remote widget
// session. Widget adapters enqueue outgoing events; the session batches them
// into requests with at most one user request in flight, keeps a background
// poll channel open for server-initiated events, and applies responses from
// both channels in issuance order.
package remote

import (
	"fmt"
	"reflect"
	"time"
)

// AdapterID identifies the server-owned model object a widget adapter
// mirrors.
type AdapterID string

// CoalesceFunc reports whether next supersedes the earlier queued event prev.
type CoalesceFunc func(next, prev *OutgoingEvent) bool

// OutgoingEvent is a widget state change on its way to the server. It must
// not be modified after it has been enqueued.
type OutgoingEvent struct {
	Target AdapterID
	Type   string
	Data   map[string]any

	// Delay is how long the event may wait for further events before a
	// request is cut. Zero sends as soon as possible.
	Delay time.Duration

	// Coalesce, if set, removes every earlier unsent event it matches.
	Coalesce CoalesceFunc

	// NewRequest forces a request boundary immediately before this event.
	NewRequest bool

	// NoBusyIndicator keeps the UI interactive while the event is in flight.
	NoBusyIndicator bool
}

func (e *OutgoingEvent) String() string {
	return fmt.Sprintf("%s/%s", e.Target, e.Type)
}

func (e *OutgoingEvent) validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.Target == "" || e.Type == "" {
		return fmt.Errorf("%w: target and type are required (got %q)", ErrInvalidEvent, e.String())
	}
	if e.Delay < 0 {
		return fmt.Errorf("%w: negative delay on %s", ErrInvalidEvent, e)
	}
	return nil
}

// SameTargetAndType coalesces events addressed to the same adapter with the
// same type.
func SameTargetAndType(next, prev *OutgoingEvent) bool {
	return next.Target == prev.Target && next.Type == prev.Type
}

// SameTargetTypeAnd returns a CoalesceFunc that additionally requires the
// given data keys to hold equal values in both events. A key missing from
// both events counts as equal.
func SameTargetTypeAnd(keys ...string) CoalesceFunc {
	return func(next, prev *OutgoingEvent) bool {
		if !SameTargetAndType(next, prev) {
			return false
		}
		for _, k := range keys {
			a, aok := next.Data[k]
			b, bok := prev.Data[k]
			if aok != bok || !reflect.DeepEqual(a, b) {
				return false
			}
		}
		return true
	}
}

// InboundEvent is an event pushed by the server, replayed against the
// widget-adapter layer.
type InboundEvent struct {
	Target AdapterID
	Type   string
	Data   map[string]any
}

func (e InboundEvent) String() string {
	return fmt.Sprintf("%s/%s", e.Target, e.Type)
}

// Channel distinguishes user-driven requests from background polls.
type Channel int

const (
	ChannelUser Channel = iota
	ChannelPoll
)

func (c Channel) String() string {
	switch c {
	case ChannelUser:
		return "user"
	case ChannelPoll:
		return "poll"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Request is one wire exchange. User requests carry a non-empty batch of
// events; poll requests carry none.
type Request struct {
	Seq               uint64
	Channel           Channel
	SessionID         string
	Events            []*OutgoingEvent
	ShowBusyIndicator bool
}

func (r *Request) String() string {
	return fmt.Sprintf("#%d %s (%d events)", r.Seq, r.Channel, len(r.Events))
}

// ResponseKind classifies how a request ended.
type ResponseKind int

const (
	Success ResponseKind = iota
	TransportFailure
	ApplicationFailure
	SessionTerminated
)

func (k ResponseKind) String() string {
	switch k {
	case Success:
		return "success"
	case TransportFailure:
		return "transport-failure"
	case ApplicationFailure:
		return "application-failure"
	case SessionTerminated:
		return "session-terminated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is the outcome of exactly one Request.
type Response struct {
	Seq    uint64
	Kind   ResponseKind
	Events []InboundEvent

	// Err describes a TransportFailure or ApplicationFailure.
	Err error

	// RedirectURL accompanies SessionTerminated.
	RedirectURL string

	// RaisedDuringApply is set once applying Events failed locally. The
	// response still counts as received.
	RaisedDuringApply bool
}
