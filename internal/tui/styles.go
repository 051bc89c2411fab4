package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#6b7280")
	danger = lipgloss.Color("#e53935")
	info   = lipgloss.Color("#2196F3")
)

// Styles groups every style the screens render with.
type Styles struct {
	Title    lipgloss.Style
	Section  lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Badge    lipgloss.Style
	Help     lipgloss.Style
	Body     lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		Section:  lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1),
		Item:     lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().PaddingLeft(0).Bold(true).Foreground(accent),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(danger),
		Badge:    lipgloss.NewStyle().Foreground(info).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(muted).MarginTop(1),
		Body:     lipgloss.NewStyle(),
	}
}
