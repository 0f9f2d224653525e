package server

import (
	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/transport"
)

// Widget kinds served by the demo desktop.
const (
	KindDesktop = "desktop"
	KindLabel   = "label"
	KindGauge   = "gauge"
	KindButton  = "button"
	KindText    = "text"
	KindTable   = "table"
)

// Action event types.
const (
	EventClick       = "click"
	EventRowSelected = "rowSelected"
	EventLogout      = "logout"
)

const (
	PropText        = "text"
	PropLabel       = "label"
	PropValue       = "value"
	PropClicks      = "clicks"
	PropRows        = "rows"
	PropSelectedRow = "selectedRow"
	PropLastEvent   = "lastEvent"
)

// Seed fills store with the demo desktop.
func Seed(store *Store) {
	for _, m := range []*Model{
		{ID: "desktop", Kind: KindDesktop, Properties: map[string]any{PropLabel: "uisync demo"}},
		{ID: "clock", Kind: KindLabel, Properties: map[string]any{PropText: ""}},
		{ID: "cpu", Kind: KindGauge, Properties: map[string]any{PropLabel: "CPU", PropValue: 0.0}},
		{ID: "mem", Kind: KindGauge, Properties: map[string]any{PropLabel: "Memory", PropValue: 0.0}},
		{ID: "counter", Kind: KindButton, Properties: map[string]any{PropLabel: "Click me", PropClicks: 0}},
		{ID: "name", Kind: KindText, Properties: map[string]any{PropLabel: "Name", PropValue: ""}},
		{ID: "hosts", Kind: KindTable, Properties: map[string]any{
			PropRows:        []any{"alpha", "bravo", "charlie", "delta"},
			PropSelectedRow: -1,
		}},
	} {
		store.Put(m)
	}
}

// act handles an action event on m and returns the events to send back.
func (s *Server) act(m *Model, ev transport.Event) []transport.Event {
	switch {
	case m.Kind == KindButton && ev.Type == EventClick:
		var clicks int
		s.store.Update(m.ID, func(m *Model) {
			clicks = asInt(m.Properties[PropClicks]) + 1
			m.Properties[PropClicks] = clicks
		})
		return []transport.Event{propertyEvent(m.ID, PropClicks, clicks)}
	case m.Kind == KindTable && ev.Type == EventRowSelected:
		row := asInt(ev.Data["row"])
		s.store.SetProperty(m.ID, PropSelectedRow, row)
		return []transport.Event{propertyEvent(m.ID, PropSelectedRow, row)}
	}
	s.store.SetProperty(m.ID, PropLastEvent, ev.Type)
	return nil
}

func propertyEvent(target, name string, value any) transport.Event {
	return transport.Event{
		Target: target,
		Type:   adapter.EventProperty,
		Data:   map[string]any{"name": name, "value": value},
	}
}

// asInt accepts the number types a property can hold after a JSON round trip.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
