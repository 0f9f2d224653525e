package status

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Snapshot  remote.Snapshot
	Transport string
	Width     int

	spinner spinner.Model
}

func New(transport string) Model {
	return Model{
		Transport: transport,
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot)),
	}
}

// Tick starts the activity spinner.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)
	s := m.Snapshot

	var state string
	switch {
	case s.Terminated:
		state = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("✗ Session terminated")
	case s.Busy:
		state = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.spinner.View() + " Busy")
	case s.RequestsPending:
		state = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(m.spinner.View() + " Sending")
	default:
		state = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Idle")
	}

	polling := lipgloss.NewStyle().
		Foreground(theme.PollingColor(s.PollingStatus.String())).
		Render("poll: " + s.PollingStatus.String())

	counts := fmt.Sprintf("%d queued  %d held  %d coalesced  #%d", s.QueueLen, s.Held, s.Coalesced, s.LastSeq)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := state + sep + polling + sep + counts
	if m.Transport != "" {
		content += sep + theme.StyleDimmed.Render(m.Transport)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
