package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Activate key.Binding
	Focus    key.Binding
	Back     key.Binding
	Jump     key.Binding
	Recent   key.Binding
	CopyView key.Binding
	CopyEdit key.Binding
	CopyCard key.Binding
	Open     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Expand:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "expand")),
		Collapse: key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "collapse")),
		Activate: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "open")),
		Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Jump:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "jump")),
		Recent:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recent")),
		CopyView: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy link")),
		CopyEdit: key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy edit link")),
		CopyCard: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy card link")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Activate, k.Focus, k.Jump, k.Recent, k.CopyView, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown},
		{k.Expand, k.Collapse, k.Activate, k.Focus, k.Back},
		{k.Jump, k.Recent, k.CopyView, k.CopyEdit, k.CopyCard, k.Open},
		{k.Help, k.Quit},
	}
}
