// Package help renders the key reference overlay from Markdown.
package help

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/remoteui/uisync/internal/theme"
)

const text = `# uisync

Widgets are mirrored from the server. Changes you make are queued,
batched and sent on the **user channel**; server-initiated updates arrive
on the **poll channel** and are applied in sequence order.

| Key | Action |
| --- | --- |
| j / k | select widget |
| enter | click button, select next row, edit text, log out |
| p | resume polling |
| d | engine log |
| e | errors only (engine log) |
| ? | this help |
| esc | close overlay |
| q | quit |

Polling status is shown in the status bar: *running*, *stopped* or
*failure*. After a failure, polling resumes with the next successful
request or with **p**.
`

// Model caches the rendered help for one width.
type Model struct {
	width    int
	rendered string
}

func New() Model {
	return Model{}
}

// View renders the help panel, re-rendering the Markdown when the width
// changes.
func (m *Model) View(width int) string {
	inner := max(width-8, 40)
	if m.rendered == "" || m.width != inner {
		m.width = inner
		m.rendered = render(inner)
	}
	return theme.StyleBorder.Padding(0, 1).Render(m.rendered)
}

func render(width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return lipgloss.NewStyle().MaxWidth(width + 4).Render(out)
}
