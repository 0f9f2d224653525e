package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/views/debug"
)

// Engine is the part of the event engine the TUI drives. remote.Client
// implements it.
type Engine interface {
	Snapshot() remote.Snapshot
	Changed() <-chan struct{}
	StartPolling(ctx context.Context) error
}

// WidgetCreatedMsg reports a widget built from a server "create" event.
type WidgetCreatedMsg struct {
	Widget *adapter.Widget
}

// WidgetChangedMsg reports a property change, local or from the server.
type WidgetChangedMsg struct {
	ID   remote.AdapterID
	Name string
}

// EngineChangedMsg is sent when the engine published a new snapshot.
type EngineChangedMsg struct{}

// LogMsg is one engine log line.
type LogMsg struct {
	Kind    string
	Message string
}

// TerminatedMsg reports that the server ended the UI session.
type TerminatedMsg struct {
	RedirectURL string
}

type pollStartedMsg struct {
	err error
}

// Hooks returns session hooks that forward engine activity to the program
// through send, usually tea.Program.Send.
func Hooks(send func(tea.Msg)) remote.Hooks {
	failed := func(f *remote.Failure) {
		send(LogMsg{Kind: debug.KindError, Message: f.Error()})
	}
	return remote.Hooks{
		RequestSent: func(req *remote.Request) {
			kind := debug.KindRequest
			if req.Channel == remote.ChannelPoll {
				kind = debug.KindPoll
			}
			send(LogMsg{Kind: kind, Message: "sent " + req.String()})
		},
		RequestCompleted: func(req *remote.Request, resp *remote.Response) {
			send(LogMsg{Kind: debug.KindApply, Message: fmt.Sprintf("#%d applied %d events", resp.Seq, len(resp.Events))})
		},
		RequestFailed: failed,
		PollFailed:    failed,
		PollingStatusChanged: func(from, to remote.PollingStatus) {
			send(LogMsg{Kind: debug.KindState, Message: fmt.Sprintf("polling %v -> %v", from, to)})
		},
		ResponseHeld: func(resp *remote.Response) {
			send(LogMsg{Kind: debug.KindPoll, Message: fmt.Sprintf("held poll response #%d behind a user request", resp.Seq)})
		},
		ApplyFailed: func(err *remote.ApplyError) {
			send(LogMsg{Kind: debug.KindError, Message: err.Error()})
		},
		SessionTerminated: func(redirectURL string) {
			send(TerminatedMsg{RedirectURL: redirectURL})
		},
		EventsCoalesced: func(n int) {
			send(LogMsg{Kind: debug.KindRequest, Message: fmt.Sprintf("coalesced %d queued events", n)})
		},
	}
}

// RegisterWidgets installs widget factories for kinds on reg. New widgets
// and their property changes are forwarded through send.
func RegisterWidgets(reg *adapter.Registry, b adapter.Behavior, send func(tea.Msg), kinds ...string) {
	for _, kind := range kinds {
		reg.OnCreate(kind, adapter.WidgetFactory(kind, b, func(w *adapter.Widget) {
			w.Watch(func(w *adapter.Widget, name string) {
				send(WidgetChangedMsg{ID: w.ID(), Name: name})
			})
			send(WidgetCreatedMsg{Widget: w})
		}))
	}
}

func waitForChange(ctx context.Context, e Engine) tea.Cmd {
	ch := e.Changed()
	return func() tea.Msg {
		select {
		case <-ch:
			return EngineChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func startPolling(ctx context.Context, e Engine) tea.Cmd {
	return func() tea.Msg {
		return pollStartedMsg{err: e.StartPolling(ctx)}
	}
}
