package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/philoview/pkg/config"
)

// Theme holds the colors and base styles shared by every view.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	Accent    lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style // keyboard cursor row
	Marked   lipgloss.Style // highlighted (selected or preserved) nodes
	Chip     lipgloss.Style
}

// DefaultTheme returns the Dracula-flavored palette used across pv.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#F1FA8C"},
		Muted:     lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6272A4"},
		Highlight: lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#8BE9FD"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"},
		Text:      lipgloss.AdaptiveColor{Light: "#000000", Dark: "#f8f8f2"},
		Accent:    lipgloss.AdaptiveColor{Light: "#008700", Dark: "#50FA7B"},
		Danger:    lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(t.Text)
	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E4E4E4", Dark: "#44475A"}).
		Bold(true)
	t.Marked = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Chip = r.NewStyle().
		Foreground(t.Highlight).
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), false, true)
	return t
}

// ThemeFor builds the theme for a configured mode; "auto" keeps the
// renderer's own background detection.
func ThemeFor(r *lipgloss.Renderer, mode string) Theme {
	switch mode {
	case config.ThemeDark:
		r.SetHasDarkBackground(true)
	case config.ThemeLight:
		r.SetHasDarkBackground(false)
	}
	return DefaultTheme(r)
}
