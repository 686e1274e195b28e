package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// Context identifies which pane or modal the help overlay describes.
type Context int

const (
	ContextTree Context = iota
	ContextPanel
	ContextRecent
)

// contextHelpContent is a compact quick reference per context, shown
// above the key table.
var contextHelpContent = map[Context]string{
	ContextTree: `Schools load lazily: the first open of a school fetches
its children, later opens toggle it. Opening a school
shows its description and contents on the right.
▸ collapsed  ▾ expanded  no marker: leaf`,
	ContextPanel: `Scroll the contents; the next page loads when fewer
than the configured number of lines remain below.
The card at the top of the pane is the focused card.`,
	ContextRecent: `Schools you opened recently, newest first.
Enter reopens the school and reveals it in the tree.`,
}

func newHelpModel(theme Theme) help.Model {
	h := help.New()
	r := theme.Renderer
	h.Styles.ShortKey = r.NewStyle().Foreground(theme.Primary)
	h.Styles.ShortDesc = r.NewStyle().Foreground(theme.Subtext)
	h.Styles.ShortSeparator = r.NewStyle().Foreground(theme.Muted)
	h.Styles.FullKey = r.NewStyle().Foreground(theme.Primary).Bold(true)
	h.Styles.FullDesc = r.NewStyle().Foreground(theme.Subtext)
	h.Styles.FullSeparator = r.NewStyle().Foreground(theme.Muted)
	return h
}

// RenderHelp renders the help modal for ctx centered in width x height.
func RenderHelp(ctx Context, keys keyMap, theme Theme, width, height int) string {
	r := theme.Renderer

	modalWidth := 72
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 30 {
		modalWidth = 30
	}

	h := newHelpModel(theme)
	h.Width = modalWidth - 6
	h.ShowAll = true

	var b strings.Builder
	b.WriteString(r.NewStyle().Bold(true).Foreground(theme.Primary).Render("Keys"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")
	if text, ok := contextHelpContent[ctx]; ok {
		b.WriteString(r.NewStyle().Foreground(theme.Text).Render(text))
		b.WriteString("\n\n")
	}
	b.WriteString(h.View(keys))
	b.WriteString("\n\n")
	b.WriteString(r.NewStyle().Foreground(theme.Muted).Italic(true).Render("? or esc to close"))

	modal := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
