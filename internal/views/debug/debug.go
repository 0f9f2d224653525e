// Package debug provides the scrollable engine log overlay: requests sent,
// responses applied or held, failures and polling status changes.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/remoteui/uisync/internal/theme"
)

const maxEntries = 500

// Entry kinds.
const (
	KindRequest = "req"
	KindPoll    = "poll"
	KindApply   = "app"
	KindError   = "err"
	KindState   = "stat"
)

type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds the log. Offset counts lines scrolled up from the newest
// entry.
type Model struct {
	Entries    []Entry
	Offset     int
	ErrorsOnly bool
}

func New() Model {
	return Model{}
}

// Add appends an entry, drops the oldest beyond maxEntries and scrolls
// back to the newest.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	if n := len(m.Entries) - maxEntries; n > 0 {
		m.Entries = m.Entries[n:]
	}
	m.Offset = 0
}

// ToggleErrorsOnly switches between all entries and failures only.
func (m *Model) ToggleErrorsOnly() {
	m.ErrorsOnly = !m.ErrorsOnly
	m.Offset = 0
}

func (m Model) visible() []Entry {
	if !m.ErrorsOnly {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == KindError {
			out = append(out, e)
		}
	}
	return out
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)
	entries := m.visible()

	filter := "all"
	if m.ErrorsOnly {
		filter = "errors"
	}
	title := theme.StyleHeader.Render(" ENGINE LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  e:%s  esc:close  %d entries", filter, len(entries)))

	style := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(entries)-m.Offset, 0)
	start := max(end-rows, 0)

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		msg := e.Message
		if limit := innerW - 20; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind),
			msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindRequest:
		return theme.ColorRequest
	case KindPoll:
		return theme.ColorPoll
	case KindApply:
		return theme.ColorApply
	case KindError:
		return theme.ColorError
	case KindState:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
