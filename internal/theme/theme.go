// Package theme provides the Lip Gloss color palette and reusable styles
// for the uisync TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Polling status colors.
var (
	ColorRunning = lipgloss.Color("#22c55e")
	ColorStopped = lipgloss.Color("#6b7280")
	ColorFailure = lipgloss.Color("#dc2626")
)

// Widget kind colors.
var (
	ColorLabel   = lipgloss.Color("#9ca3af")
	ColorGauge   = lipgloss.Color("#06b6d4")
	ColorButton  = lipgloss.Color("#a855f7")
	ColorText    = lipgloss.Color("#3b82f6")
	ColorTable   = lipgloss.Color("#d97706")
	ColorDesktop = lipgloss.Color("#f9fafb")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Gauge thresholds.
var (
	ColorGaugeLow  = lipgloss.Color("#22c55e") // <50%
	ColorGaugeMid  = lipgloss.Color("#d97706") // 50-80%
	ColorGaugeHigh = lipgloss.Color("#dc2626") // >80%
)

// Debug log kind colors.
var (
	ColorRequest = lipgloss.Color("#2563eb")
	ColorPoll    = lipgloss.Color("#7c3aed")
	ColorError   = lipgloss.Color("#dc2626")
	ColorApply   = lipgloss.Color("#16a34a")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// PollingColor returns the color for a polling status name.
func PollingColor(status string) lipgloss.Color {
	switch status {
	case "running":
		return ColorRunning
	case "failure":
		return ColorFailure
	default:
		return ColorStopped
	}
}

// KindColor returns the color for a widget kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "label":
		return ColorLabel
	case "gauge":
		return ColorGauge
	case "button":
		return ColorButton
	case "text":
		return ColorText
	case "table":
		return ColorTable
	case "desktop":
		return ColorDesktop
	default:
		return ColorDefault
	}
}

// GaugeColor returns the color for a gauge percentage.
func GaugeColor(pct float64) lipgloss.Color {
	switch {
	case pct > 80:
		return ColorGaugeHigh
	case pct > 50:
		return ColorGaugeMid
	default:
		return ColorGaugeLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)
