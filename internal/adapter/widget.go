package adapter

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/remoteui/uisync/internal/remote"
)

// Event types understood by every widget.
const (
	EventProperty = "property"
	EventCreate   = "create"
	EventDispose  = "dispose"
)

// ErrUnhandledEvent is returned for an inbound event type a widget has no
// handler for.
var ErrUnhandledEvent = errors.New("adapter: unhandled event type")

// Adapter is the client-side proxy of one server-owned model object.
type Adapter interface {
	ID() remote.AdapterID
	OnModelEvent(ev remote.InboundEvent) error
}

// Handler reacts to one inbound event type.
type Handler func(w *Widget, ev remote.InboundEvent) error

// Widget is a generic adapter: a property bag mirrored to the server plus
// per-type handlers for everything else the server pushes.
type Widget struct {
	id       remote.AdapterID
	kind     string
	behavior Behavior

	mu       sync.RWMutex
	props    map[string]any
	handlers map[string]Handler
	watchers []func(w *Widget, name string)
}

var _ Adapter = (*Widget)(nil)

// NewWidget builds a widget. A nil behavior is LocalBehavior.
func NewWidget(id remote.AdapterID, kind string, b Behavior) *Widget {
	if b == nil {
		b = LocalBehavior{}
	}
	return &Widget{
		id:       id,
		kind:     kind,
		behavior: b,
		props:    make(map[string]any),
		handlers: make(map[string]Handler),
	}
}

func (w *Widget) ID() remote.AdapterID { return w.id }
func (w *Widget) Kind() string          { return w.kind }
func (w *Widget) Behavior() Behavior    { return w.behavior }

// Get returns a property value.
func (w *Widget) Get(name string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.props[name]
	return v, ok
}

// Properties returns a copy of all properties.
func (w *Widget) Properties() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.props)
}

// Set changes a property locally and reports it to the server. Consecutive
// changes of the same property coalesce into the latest one.
func (w *Widget) Set(name string, value any, opts ...EventOption) error {
	w.setLocal(name, value)
	opts = append([]EventOption{Coalescing(remote.SameTargetTypeAnd("name"))}, opts...)
	return w.Send(EventProperty, map[string]any{"name": name, "value": value}, opts...)
}

// Send reports an action to the server, e.g. a click or a selection.
func (w *Widget) Send(typ string, data map[string]any, opts ...EventOption) error {
	ev := &remote.OutgoingEvent{Target: w.id, Type: typ, Data: data}
	for _, o := range opts {
		o(ev)
	}
	if err := w.behavior.Send(ev); err != nil {
		return fmt.Errorf("%s: send %s: %w", w.id, typ, err)
	}
	return nil
}

// Handle registers h for inbound events of type typ.
func (w *Widget) Handle(typ string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[typ] = h
}

// Watch registers fn to be called after every property change, local or
// from the server.
func (w *Widget) Watch(fn func(w *Widget, name string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers = append(w.watchers, fn)
}

// OnModelEvent applies a server-side change. Property updates from the
// server are not echoed back.
func (w *Widget) OnModelEvent(ev remote.InboundEvent) error {
	if ev.Type == EventProperty {
		name, ok := ev.Data["name"].(string)
		if !ok || name == "" {
			return fmt.Errorf("%s: property event without name", w.id)
		}
		w.setLocal(name, ev.Data["value"])
		return nil
	}
	w.mu.RLock()
	h, ok := w.handlers[ev.Type]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w %q", w.id, ErrUnhandledEvent, ev.Type)
	}
	return h(w, ev)
}

func (w *Widget) setLocal(name string, value any) {
	w.mu.Lock()
	w.props[name] = value
	watchers := w.watchers
	w.mu.Unlock()
	for _, fn := range watchers {
		fn(w, name)
	}
}

// WidgetFactory returns a Factory for Widgets of the given kind, seeded with
// the properties of the create event. setup, if not nil, runs before the
// widget is registered.
func WidgetFactory(kind string, b Behavior, setup func(w *Widget)) Factory {
	return func(id remote.AdapterID, props map[string]any) (Adapter, error) {
		w := NewWidget(id, kind, b)
		maps.Copy(w.props, props)
		if setup != nil {
			setup(w)
		}
		return w, nil
	}
}
