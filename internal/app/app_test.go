package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/views/debug"
)

type fakeEngine struct {
	snap    remote.Snapshot
	changed chan struct{}
	polls   int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{changed: make(chan struct{})}
}

func (e *fakeEngine) Snapshot() remote.Snapshot { return e.snap }
func (e *fakeEngine) Changed() <-chan struct{}  { return e.changed }
func (e *fakeEngine) StartPolling(context.Context) error {
	e.polls++
	return nil
}

type recorder struct {
	events []*remote.OutgoingEvent
}

func (r *recorder) Enqueue(ev *remote.OutgoingEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

// setup builds a model with widgets created through the registry, the way
// a create response from the server would.
func setup(t *testing.T) (Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	var msgs []tea.Msg
	reg := adapter.NewRegistry()
	reg.Logf = t.Logf
	RegisterWidgets(reg, adapter.RemoteBehavior{Session: rec}, func(msg tea.Msg) { msgs = append(msgs, msg) },
		"button", "table", "text", "desktop")

	create := func(id, kind string, props map[string]any) remote.InboundEvent {
		return remote.InboundEvent{Target: remote.AdapterID(id), Type: adapter.EventCreate, Data: map[string]any{"kind": kind, "properties": props}}
	}
	err := reg.Apply([]remote.InboundEvent{
		create("counter", "button", map[string]any{"label": "Click me", "clicks": 0.0}),
		create("hosts", "table", map[string]any{"rows": []any{"alpha", "bravo"}, "selectedRow": -1.0}),
		create("name", "text", map[string]any{"label": "Name", "value": "al"}),
		create("desktop", "desktop", map[string]any{"label": "demo"}),
	})
	if err != nil {
		t.Fatal(err)
	}

	m := New(newFakeEngine(), Options{Transport: "http"})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return update(t, m, msgs...), rec
}

func TestViewBeforeResize(t *testing.T) {
	m := New(newFakeEngine(), Options{})
	if v := m.View(); v != "Initializing..." {
		t.Errorf("View() = %q", v)
	}
}

func TestActivateWidgets(t *testing.T) {
	m, rec := setup(t)
	if v := m.View(); !strings.Contains(v, "Click me") || !strings.Contains(v, "alpha") {
		t.Fatalf("widgets not rendered:\n%s", v)
	}

	m = update(t, m, keyMsg("enter"))            // click counter
	m = update(t, m, keyMsg("j"), keyMsg("enter")) // select first row
	m = update(t, m, keyMsg("j"), keyMsg("j"), keyMsg("enter"))

	type sent struct {
		Target, Type string
		Data         map[string]any
		NewRequest   bool
	}
	var got []sent
	for _, ev := range rec.events {
		got = append(got, sent{string(ev.Target), ev.Type, ev.Data, ev.NewRequest})
	}
	want := []sent{
		{"counter", "click", nil, false},
		{"hosts", "rowSelected", map[string]any{"row": 0}, false},
		{"desktop", "logout", nil, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sent events mismatch (-want +got):\n%s", diff)
	}
	if rec.events[1].Coalesce == nil {
		t.Error("row selection does not coalesce")
	}
}

func TestEditTextField(t *testing.T) {
	m, rec := setup(t)
	m = update(t, m, keyMsg("j"), keyMsg("j"), keyMsg("enter"))
	if m.overlay != OverlayEdit || m.editing == nil || m.editing.ID() != "name" {
		t.Fatalf("overlay = %v, editing %v", m.overlay, m.editing)
	}
	if v := m.View(); !strings.Contains(v, "Editing name") {
		t.Errorf("edit box not rendered:\n%s", v)
	}

	// Keys that are bindings elsewhere are text here.
	m = update(t, m, keyMsg("q"), keyMsg("d"), keyMsg("enter"))
	if m.overlay != OverlayNone {
		t.Error("enter did not close the edit box")
	}

	var values []any
	for _, ev := range rec.events {
		if ev.Type != adapter.EventProperty {
			t.Fatalf("unexpected event %v", ev)
		}
		if ev.Delay != editDelay || !ev.NoBusyIndicator || ev.Coalesce == nil {
			t.Errorf("property event %+v lacks delay, busy flag or coalescing", ev)
		}
		values = append(values, ev.Data["value"])
	}
	if diff := cmp.Diff([]any{"alq", "alqd"}, values); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
}

func TestTerminatedIgnoresActions(t *testing.T) {
	m, rec := setup(t)
	m = update(t, m, TerminatedMsg{RedirectURL: "/login"}, keyMsg("enter"))
	if len(rec.events) != 0 {
		t.Errorf("terminated session sent %d events", len(rec.events))
	}
	if v := m.View(); !strings.Contains(v, "SESSION TERMINATED") || !strings.Contains(v, "/login") {
		t.Errorf("View() lacks termination banner:\n%s", v)
	}
}

func TestEngineChangedRefreshesStatus(t *testing.T) {
	e := newFakeEngine()
	m := New(e, Options{Poll: true})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	e.snap = remote.Snapshot{PollingStatus: remote.PollingFailure, Held: 2}

	next, cmd := m.Update(EngineChangedMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Error("EngineChangedMsg did not re-arm the snapshot watch")
	}
	if v := m.View(); !strings.Contains(v, "poll: failure") || !strings.Contains(v, "2 held") {
		t.Errorf("status bar not refreshed:\n%s", v)
	}

	_, cmd = m.Update(keyMsg("p"))
	if cmd == nil {
		t.Fatal("p returned no command")
	}
	if msg := cmd(); msg != (pollStartedMsg{}) || e.polls != 1 {
		t.Errorf("p ran %v, polls = %d", msg, e.polls)
	}
}

func TestOverlays(t *testing.T) {
	m, _ := setup(t)
	m = update(t, m,
		LogMsg{Kind: debug.KindError, Message: "#3 user transport-failure: refused"},
		pollStartedMsg{err: errors.New("closed")},
		keyMsg("d"))
	v := m.View()
	for _, want := range []string{"ENGINE LOG", "refused", "start polling: closed", "created button counter"} {
		if !strings.Contains(v, want) {
			t.Errorf("engine log missing %q", want)
		}
	}
	m = update(t, m, keyMsg("esc"), keyMsg("?"))
	if m.overlay != OverlayHelp {
		t.Fatalf("overlay = %v; want help", m.overlay)
	}
	m = update(t, m, keyMsg("esc"))
	if m.overlay != OverlayNone {
		t.Errorf("overlay = %v after esc", m.overlay)
	}
}

func TestHooksForwardEngineActivity(t *testing.T) {
	var msgs []tea.Msg
	h := Hooks(func(msg tea.Msg) { msgs = append(msgs, msg) })

	h.RequestSent(&remote.Request{Seq: 1, Channel: remote.ChannelPoll})
	h.PollingStatusChanged(remote.PollingRunning, remote.PollingFailure)
	h.RequestFailed(&remote.Failure{Request: &remote.Request{Seq: 2}, Kind: remote.TransportFailure, Err: errors.New("refused")})
	h.SessionTerminated("/bye")

	var kinds []string
	for _, msg := range msgs {
		switch msg := msg.(type) {
		case LogMsg:
			kinds = append(kinds, msg.Kind)
		case TerminatedMsg:
			kinds = append(kinds, "terminated:"+msg.RedirectURL)
		}
	}
	want := []string{debug.KindPoll, debug.KindState, debug.KindError, "terminated:/bye"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("forwarded messages mismatch (-want +got):\n%s", diff)
	}
}
