package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/theme"
	"github.com/remoteui/uisync/internal/views/debug"
	"github.com/remoteui/uisync/internal/views/desktop"
	"github.com/remoteui/uisync/internal/views/help"
	"github.com/remoteui/uisync/internal/views/status"
)

// editDelay lets keystrokes in a text field collect into one request.
const editDelay = 300 * time.Millisecond

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
	OverlayEdit
)

// Options configure the root model.
type Options struct {
	// Transport names the wire transport in the status bar.
	Transport string
	// Poll starts the poll channel on Init.
	Poll bool
}

// Model is the root Bubble Tea model.
type Model struct {
	engine Engine
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	overlay Overlay
	editing *adapter.Widget
	input   textinput.Model

	statusBar status.Model
	desktop   desktop.Model
	debugLog  debug.Model
	help      *help.Model

	terminated bool
	redirect   string
}

// New creates the root model.
func New(engine Engine, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	input := textinput.New()
	input.Prompt = "> "
	h := help.New()
	return Model{
		engine:    engine,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		input:     input,
		statusBar: status.New(opts.Transport),
		desktop:   desktop.New(),
		debugLog:  debug.New(),
		help:      &h,
	}
}

// Init starts the spinner, the snapshot watch and, if enabled, polling.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.statusBar.Tick(), waitForChange(m.ctx, m.engine)}
	if m.opts.Poll {
		cmds = append(cmds, startPolling(m.ctx, m.engine))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.desktop.Width = msg.Width
		m.input.Width = max(msg.Width-10, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case WidgetCreatedMsg:
		m.desktop.Remove(msg.Widget.ID())
		m.desktop.Add(msg.Widget)
		m.debugLog.Add(debug.KindApply, fmt.Sprintf("created %s %s", msg.Widget.Kind(), msg.Widget.ID()))
		return m, nil

	case WidgetChangedMsg:
		return m, m.desktop.Changed(msg.ID, msg.Name)

	case EngineChangedMsg:
		m.statusBar.Snapshot = m.engine.Snapshot()
		return m, waitForChange(m.ctx, m.engine)

	case LogMsg:
		m.debugLog.Add(msg.Kind, msg.Message)
		return m, nil

	case TerminatedMsg:
		m.terminated = true
		m.redirect = msg.RedirectURL
		m.overlay = OverlayNone
		m.editing = nil
		m.debugLog.Add(debug.KindState, "session terminated, redirect "+msg.RedirectURL)
		return m, nil

	case pollStartedMsg:
		if msg.err != nil {
			m.debugLog.Add(debug.KindError, "start polling: "+msg.err.Error())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		return m, cmd

	case desktop.FrameMsg:
		var cmd tea.Cmd
		m.desktop, cmd = m.desktop.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case OverlayEdit:
		return m.handleEditKey(msg)
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case key.Matches(msg, m.keys.ErrorsOnly):
			m.debugLog.ToggleErrorsOnly()
		}
		return m, nil
	case OverlayHelp:
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Help) {
			m.overlay = OverlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.desktop.Next()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.desktop.Prev()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		return m.activate()

	case key.Matches(msg, m.keys.Poll):
		return m, startPolling(m.ctx, m.engine)

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

// activate performs the selected widget's action.
func (m Model) activate() (tea.Model, tea.Cmd) {
	w := m.desktop.Current()
	if w == nil || m.terminated {
		return m, nil
	}

	var err error
	switch w.Kind() {
	case "button":
		err = w.Send("click", nil)
	case "table":
		if n, sel := desktop.Rows(w); n > 0 {
			err = w.Send("rowSelected", map[string]any{"row": (sel + 1) % n},
				adapter.Coalescing(remote.SameTargetAndType))
		}
	case "text":
		v, _ := w.Get("value")
		m.input.SetValue(fmt.Sprint(v))
		m.input.CursorEnd()
		m.editing = w
		m.overlay = OverlayEdit
		cmd := m.input.Focus()
		return m, cmd
	case "desktop":
		err = w.Send("logout", nil, adapter.StartsNewRequest())
	}
	if err != nil {
		m.debugLog.Add(debug.KindError, err.Error())
	}
	return m, nil
}

// handleEditKey feeds keys to the text input. Every change is reported with
// a delay and coalesces with the previous one, so typing produces one
// request.
func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) || msg.Type == tea.KeyEnter {
		m.input.Blur()
		m.editing = nil
		m.overlay = OverlayNone
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before && m.editing != nil {
		if err := m.editing.Set("value", v, adapter.WithDelay(editDelay), adapter.WithoutBusyIndicator()); err != nil {
			m.debugLog.Add(debug.KindError, err.Error())
		}
	}
	return m, cmd
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return m.debugLog.View(m.width, m.height)
	case OverlayHelp:
		return m.help.View(m.width)
	}

	sections := []string{m.statusBar.View()}
	if m.terminated {
		sections = append(sections, m.renderTerminated())
	}
	sections = append(sections, m.desktop.View())
	if m.overlay == OverlayEdit && m.editing != nil {
		sections = append(sections, theme.StyleBorder.Render(
			theme.StyleHeader.Render(fmt.Sprintf("Editing %s", m.editing.ID()))+"\n"+m.input.View()))
	}
	sections = append(sections, theme.StyleDimmed.Render("  j/k:select  enter:activate  p:poll  d:log  ?:help  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTerminated() string {
	msg := "SESSION TERMINATED"
	if m.redirect != "" {
		msg += "  redirect: " + m.redirect
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorDanger).
		Padding(0, 1).
		Render(msg)
}
