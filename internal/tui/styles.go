package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the terminal front-end.
type Styles struct {
	App     lipgloss.Style
	Header  lipgloss.Style
	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Hint    lipgloss.Style
	Correct lipgloss.Style
	Wrong   lipgloss.Style
	Footer  lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	rose := lipgloss.AdaptiveColor{Light: "#B4235A", Dark: "#F28BB0"}
	muted := lipgloss.AdaptiveColor{Light: "#7A7A7A", Dark: "#8A8A8A"}

	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),
		Header: lipgloss.NewStyle().
			Foreground(muted).
			MarginBottom(1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(rose),
		Body: lipgloss.NewStyle().
			Width(72),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Accent: lipgloss.NewStyle().
			Foreground(rose),
		Hint: lipgloss.NewStyle().
			Italic(true).
			Foreground(muted),
		Correct: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3FA66B")),
		Wrong: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D0563B")),
		Footer: lipgloss.NewStyle().
			MarginTop(1),
	}
}
