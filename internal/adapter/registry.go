package adapter

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/remoteui/uisync/internal/remote"
)

// Factory builds the adapter for a "create" event.
type Factory func(id remote.AdapterID, props map[string]any) (Adapter, error)

// UnresolvedTargetsError lists inbound events whose target adapter did not
// exist, even after the rest of the batch was applied.
type UnresolvedTargetsError struct {
	Events []remote.InboundEvent
}

func (e *UnresolvedTargetsError) Error() string {
	targets := make([]string, len(e.Events))
	for i, ev := range e.Events {
		targets[i] = ev.String()
	}
	return fmt.Sprintf("adapter: no adapter for %s", strings.Join(targets, ", "))
}

// Registry maps adapter ids to adapters and replays inbound events against
// them. It implements remote.Applier.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[remote.AdapterID]Adapter
	factories map[string]Factory

	// Logf defaults to log.Printf.
	Logf remote.Logf
}

var _ remote.Applier = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		adapters:  make(map[remote.AdapterID]Adapter),
		factories: make(map[string]Factory),
	}
}

func (r *Registry) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Register adds a. Ids are unique.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[a.ID()]; ok {
		return fmt.Errorf("adapter: %s already registered", a.ID())
	}
	r.adapters[a.ID()] = a
	return nil
}

// Unregister removes the adapter with the given id, if any.
func (r *Registry) Unregister(id remote.AdapterID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, id)
}

// Lookup returns the adapter registered under id.
func (r *Registry) Lookup(id remote.AdapterID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the registered ids in no particular order.
func (r *Registry) IDs() []remote.AdapterID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]remote.AdapterID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// OnCreate registers the factory used for "create" events of the given
// kind.
func (r *Registry) OnCreate(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Apply dispatches events in order. An event whose target is not registered
// yet is postponed; after every event that does find its target the
// postponed ones are retried in order, since that event may have created
// their adapter. Later events for a target therefore never overtake earlier
// ones. Dispatch errors do not stop the batch; they are joined and returned
// together with any events that never found their target.
func (r *Registry) Apply(events []remote.InboundEvent) error {
	var errs []error
	var postponed []remote.InboundEvent
	for _, ev := range events {
		ok, err := r.dispatch(ev)
		if err != nil {
			errs = append(errs, err)
		}
		if !ok {
			postponed = append(postponed, ev)
			continue
		}
		postponed = r.retry(postponed, &errs)
	}
	if len(postponed) > 0 {
		errs = append(errs, &UnresolvedTargetsError{Events: postponed})
	}
	return errors.Join(errs...)
}

// retry dispatches postponed events in order and starts over from the
// first one whenever an event finds its target. It returns the events that
// are still unresolved.
func (r *Registry) retry(postponed []remote.InboundEvent, errs *[]error) []remote.InboundEvent {
	for i := 0; i < len(postponed); {
		ok, err := r.dispatch(postponed[i])
		if err != nil {
			*errs = append(*errs, err)
		}
		if !ok {
			i++
			continue
		}
		postponed = slices.Delete(postponed, i, i+1)
		i = 0
	}
	return postponed
}

// dispatch applies one event. ok is false if the target does not exist.
func (r *Registry) dispatch(ev remote.InboundEvent) (ok bool, err error) {
	switch ev.Type {
	case EventCreate:
		return true, r.create(ev)
	case EventDispose:
		r.Unregister(ev.Target)
		return true, nil
	}
	a, found := r.Lookup(ev.Target)
	if !found {
		return false, nil
	}
	if err := a.OnModelEvent(ev); err != nil {
		return true, err
	}
	return true, nil
}

func (r *Registry) create(ev remote.InboundEvent) error {
	kind, _ := ev.Data["kind"].(string)
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("adapter: no factory for kind %q (%s)", kind, ev.Target)
	}
	props, _ := ev.Data["properties"].(map[string]any)
	a, err := f(ev.Target, props)
	if err != nil {
		return fmt.Errorf("adapter: create %s: %w", ev.Target, err)
	}
	if err := r.Register(a); err != nil {
		return err
	}
	r.logf("adapter: created %s %s", kind, ev.Target)
	return nil
}
