// Package adapter connects widgets to their server-side models. A widget is
// given a Behavior when it is built; the behavior decides whether state
// changes travel to the server or stay local.
package adapter

import (
	"time"

	"github.com/remoteui/uisync/internal/remote"
)

// Enqueuer accepts outgoing events. *remote.Session and *remote.Client both
// satisfy it.
type Enqueuer interface {
	Enqueue(ev *remote.OutgoingEvent) error
}

// Behavior is the capability a widget uses to report state changes.
type Behavior interface {
	Send(ev *remote.OutgoingEvent) error
	Remote() bool
}

// RemoteBehavior sends every event through the session.
type RemoteBehavior struct {
	Session Enqueuer
}

func (b RemoteBehavior) Send(ev *remote.OutgoingEvent) error { return b.Session.Enqueue(ev) }
func (RemoteBehavior) Remote() bool                          { return true }

// LocalBehavior keeps widgets standalone. Events are dropped.
type LocalBehavior struct{}

func (LocalBehavior) Send(*remote.OutgoingEvent) error { return nil }
func (LocalBehavior) Remote() bool                     { return false }

// BehaviorFor picks the behavior for mode.
func BehaviorFor(mode remote.Mode, session Enqueuer) Behavior {
	if mode == remote.ModeRemote && session != nil {
		return RemoteBehavior{Session: session}
	}
	return LocalBehavior{}
}

// EventOption tweaks an outgoing event before it is sent.
type EventOption func(*remote.OutgoingEvent)

// WithDelay lets the event wait up to d for further events.
func WithDelay(d time.Duration) EventOption {
	return func(ev *remote.OutgoingEvent) { ev.Delay = d }
}

// Coalescing sets the event's coalesce predicate.
func Coalescing(f remote.CoalesceFunc) EventOption {
	return func(ev *remote.OutgoingEvent) { ev.Coalesce = f }
}

// StartsNewRequest forces a request boundary before the event.
func StartsNewRequest() EventOption {
	return func(ev *remote.OutgoingEvent) { ev.NewRequest = true }
}

// WithoutBusyIndicator keeps the UI interactive while the event is in
// flight.
func WithoutBusyIndicator() EventOption {
	return func(ev *remote.OutgoingEvent) { ev.NoBusyIndicator = true }
}
