// Package desktop renders the widgets mirrored from the server. Gauges ease
// toward new values with a spring.
package desktop

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/theme"
)

const (
	fps      = 30
	barWidth = 30
	settled  = 0.05
)

// FrameMsg advances gauge animations.
type FrameMsg time.Time

type gauge struct {
	pos, vel, target float64
}

func (g *gauge) done() bool {
	return math.Abs(g.pos-g.target) < settled && math.Abs(g.vel) < settled
}

type Model struct {
	Width    int
	Selected int

	widgets   []*adapter.Widget
	gauges    map[remote.AdapterID]*gauge
	spring    harmonica.Spring
	animating bool
}

func New() Model {
	return Model{
		gauges: make(map[remote.AdapterID]*gauge),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.8),
	}
}

// Add appends w. Gauges start at their current value.
func (m *Model) Add(w *adapter.Widget) {
	m.widgets = append(m.widgets, w)
	if w.Kind() == "gauge" {
		v := number(w, "value")
		m.gauges[w.ID()] = &gauge{pos: v, target: v}
	}
}

// Remove drops the widget with the given id.
func (m *Model) Remove(id remote.AdapterID) {
	for i, w := range m.widgets {
		if w.ID() == id {
			m.widgets = append(m.widgets[:i:i], m.widgets[i+1:]...)
			break
		}
	}
	delete(m.gauges, id)
	if m.Selected >= len(m.widgets) {
		m.Selected = max(len(m.widgets)-1, 0)
	}
}

func (m Model) Len() int { return len(m.widgets) }

// Current returns the selected widget, if any.
func (m Model) Current() *adapter.Widget {
	if m.Selected < 0 || m.Selected >= len(m.widgets) {
		return nil
	}
	return m.widgets[m.Selected]
}

func (m *Model) Next() {
	if len(m.widgets) > 0 {
		m.Selected = (m.Selected + 1) % len(m.widgets)
	}
}

func (m *Model) Prev() {
	if len(m.widgets) > 0 {
		m.Selected = (m.Selected - 1 + len(m.widgets)) % len(m.widgets)
	}
}

// Changed notes a property change of widget id and starts the gauge
// animation if needed.
func (m *Model) Changed(id remote.AdapterID, name string) tea.Cmd {
	g, ok := m.gauges[id]
	if !ok || name != "value" {
		return nil
	}
	for _, w := range m.widgets {
		if w.ID() == id {
			g.target = number(w, "value")
		}
	}
	if m.animating || g.done() {
		return nil
	}
	m.animating = true
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return FrameMsg(t) })
}

// Update advances the gauge springs on FrameMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	moving := false
	for _, g := range m.gauges {
		g.pos, g.vel = m.spring.Update(g.pos, g.vel, g.target)
		if g.done() {
			g.pos, g.vel = g.target, 0
		} else {
			moving = true
		}
	}
	m.animating = moving
	if moving {
		return m, frame()
	}
	return m, nil
}

// View renders one line per widget.
func (m Model) View() string {
	if len(m.widgets) == 0 {
		return theme.StyleDimmed.Render("  Waiting for the server...")
	}
	lines := make([]string, 0, len(m.widgets))
	for i, w := range m.widgets {
		prefix := "  "
		if i == m.Selected {
			prefix = "> "
		}
		name := lipgloss.NewStyle().Foreground(theme.KindColor(w.Kind())).Width(10).Render(string(w.ID()))
		lines = append(lines, prefix+name+" "+m.render(w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) render(w *adapter.Widget) string {
	switch w.Kind() {
	case "desktop":
		return theme.StyleHeader.Render(text(w, "label")) + theme.StyleDimmed.Render("  (enter: log out)")
	case "label":
		return text(w, "text")
	case "gauge":
		pos := number(w, "value")
		if g, ok := m.gauges[w.ID()]; ok {
			pos = g.pos
		}
		return fmt.Sprintf("%-8s %s %5.1f%%", text(w, "label"), bar(pos), number(w, "value"))
	case "button":
		return fmt.Sprintf("[ %s ]  clicks: %d", text(w, "label"), int(number(w, "clicks")))
	case "text":
		return fmt.Sprintf("%s: %s▏", text(w, "label"), text(w, "value"))
	case "table":
		return table(w)
	}
	return theme.StyleDimmed.Render(fmt.Sprintf("%v", w.Properties()))
}

func bar(pct float64) string {
	pct = min(max(pct, 0), 100)
	filled := int(math.Round(pct / 100 * barWidth))
	return lipgloss.NewStyle().Foreground(theme.GaugeColor(pct)).Render(strings.Repeat("█", filled)) +
		theme.StyleDimmed.Render(strings.Repeat("░", barWidth-filled))
}

func table(w *adapter.Widget) string {
	rows, _ := w.Get("rows")
	list, _ := rows.([]any)
	selected := int(number(w, "selectedRow"))
	cells := make([]string, len(list))
	for i, r := range list {
		cell := fmt.Sprint(r)
		if i == selected {
			cell = theme.StyleSelected.Render("[" + cell + "]")
		}
		cells[i] = cell
	}
	return strings.Join(cells, "  ")
}

func text(w *adapter.Widget, name string) string {
	v, ok := w.Get(name)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// number reads a numeric property; JSON decoding yields float64, locally
// set values may be ints.
func number(w *adapter.Widget, name string) float64 {
	v, _ := w.Get(name)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

// Rows returns the row count and selected row of a table widget.
func Rows(w *adapter.Widget) (n, selected int) {
	rows, _ := w.Get("rows")
	list, _ := rows.([]any)
	return len(list), int(number(w, "selectedRow"))
}
