package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/lipgloss"
)

// MarkdownRenderer renders school descriptions with glamour. It falls back
// to the raw text when no renderer could be built.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	useTheme bool
	theme    *Theme
}

// NewMarkdownRenderer uses glamour's automatic style.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	mr := &MarkdownRenderer{width: width}
	mr.renderer = mr.build()
	return mr
}

// NewMarkdownRendererWithTheme derives the glamour style from theme.
func NewMarkdownRendererWithTheme(width int, theme Theme) *MarkdownRenderer {
	mr := &MarkdownRenderer{width: width, useTheme: true, theme: &theme}
	mr.renderer = mr.build()
	return mr
}

func (mr *MarkdownRenderer) build() *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(mr.width)}
	if mr.useTheme && mr.theme != nil {
		opts = append(opts, glamour.WithStyles(buildStyleFromTheme(*mr.theme, mr.IsDarkMode())))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

// Render renders markdown, returning the input unchanged without a renderer.
func (mr *MarkdownRenderer) Render(md string) (string, error) {
	if mr.renderer == nil {
		return md, nil
	}
	return mr.renderer.Render(md)
}

// SetWidth rebuilds the renderer for a new wrap width.
func (mr *MarkdownRenderer) SetWidth(width int) {
	if width <= 0 || width == mr.width {
		return
	}
	mr.width = width
	mr.renderer = mr.build()
}

// SetWidthWithTheme switches to theme-derived styles at width.
func (mr *MarkdownRenderer) SetWidthWithTheme(width int, theme Theme) {
	if width > 0 {
		mr.width = width
	}
	mr.useTheme = true
	mr.theme = &theme
	mr.renderer = mr.build()
}

// IsDarkMode reports whether the terminal background is dark.
func (mr *MarkdownRenderer) IsDarkMode() bool {
	if mr.theme != nil && mr.theme.Renderer != nil {
		return mr.theme.Renderer.HasDarkBackground()
	}
	return lipgloss.HasDarkBackground()
}

func extractHex(c lipgloss.AdaptiveColor, dark bool) string {
	if dark {
		return c.Dark
	}
	return c.Light
}

func buildStyleFromTheme(theme Theme, dark bool) ansi.StyleConfig {
	str := func(s string) *string { return &s }
	yes := true
	margin, indent := uint(0), uint(1)

	text := extractHex(theme.Text, dark)
	primary := extractHex(theme.Primary, dark)
	link := extractHex(theme.Highlight, dark)
	muted := extractHex(theme.Muted, dark)

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: str(text)},
			Margin:         &margin,
		},
		Paragraph: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: str(text)},
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: str(primary), Bold: &yes},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Prefix: "# ", Color: str(primary), Bold: &yes},
		},
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Prefix: "## ", Color: str(primary), Bold: &yes},
		},
		H3: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Prefix: "### ", Color: str(primary)},
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: str(muted), Italic: &yes},
			Indent:         &indent,
			IndentToken:    str("│ "),
		},
		Item:        ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{BlockPrefix: ". "},
		Emph:        ansi.StylePrimitive{Italic: &yes},
		Strong:      ansi.StylePrimitive{Bold: &yes},
		Link:        ansi.StylePrimitive{Color: str(link), Underline: &yes},
		LinkText:    ansi.StylePrimitive{Color: str(link), Bold: &yes},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: str(extractHex(theme.Secondary, dark))},
		},
	}
}
