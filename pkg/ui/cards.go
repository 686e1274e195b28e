package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/model"
)

// CardContext is what a card renderer needs besides the item itself.
type CardContext struct {
	Lang    string
	Width   int
	Focused bool
	Badge   LikeBadge
	Badged  bool // Badge was attached for this card
}

// CardRenderer draws one content item. Variants differ in which
// cross-references they show.
type CardRenderer interface {
	Render(item model.ContentItem, ctx CardContext) string
}

// NewCardRenderer returns the renderer for a configured card variant.
func NewCardRenderer(variant string, theme Theme) (CardRenderer, error) {
	switch variant {
	case config.CardCrossRef, "":
		return crossrefCard{theme: theme}, nil
	case config.CardAuthor:
		return authorCard{theme: theme}, nil
	}
	return nil, fmt.Errorf("unknown card variant %q", variant)
}

// crossrefCard shows school chips, the body and the philosopher line.
type crossrefCard struct{ theme Theme }

func (c crossrefCard) Render(item model.ContentItem, ctx CardContext) string {
	r := c.theme.Renderer
	var lines []string

	if item.School != nil {
		var chips []string
		if item.School.Parent != nil {
			chips = append(chips, item.School.Parent.LocalizedName(ctx.Lang))
		}
		chips = append(chips, item.School.LocalizedName(ctx.Lang))
		lines = append(lines, r.NewStyle().Foreground(c.theme.Highlight).Render(strings.Join(chips, " › ")))
	}
	lines = append(lines, cardBody(c.theme, item, ctx)...)

	if p := item.Philosopher; p != nil {
		meta := p.LocalizedName(ctx.Lang)
		if p.Era != "" {
			meta += " | " + p.Era
		}
		lines = append(lines, r.NewStyle().Foreground(c.theme.Subtext).Italic(true).Render(meta))
	}
	if ctx.Badged {
		lines = append(lines, renderBadge(c.theme, ctx.Badge))
	}
	return cardFrame(c.theme, ctx).Render(strings.Join(lines, "\n"))
}

// authorCard shows the body and who submitted it.
type authorCard struct{ theme Theme }

func (c authorCard) Render(item model.ContentItem, ctx CardContext) string {
	r := c.theme.Renderer
	lines := cardBody(c.theme, item, ctx)

	if u := item.User; u != nil && u.Username != "" {
		by := "— " + u.Username
		if u.Role != "" && u.Role != model.RoleUser {
			by += " (" + string(u.Role) + ")"
		}
		lines = append(lines, r.NewStyle().Foreground(c.theme.Subtext).Render(by))
	}
	if ctx.Badged {
		lines = append(lines, renderBadge(c.theme, ctx.Badge))
	}
	return cardFrame(c.theme, ctx).Render(strings.Join(lines, "\n"))
}

func cardBody(theme Theme, item model.ContentItem, ctx CardContext) []string {
	r := theme.Renderer
	var lines []string
	if item.Title != "" {
		lines = append(lines, r.NewStyle().Bold(true).Foreground(theme.Text).Render(item.Title))
	}
	body := item.DisplayText(ctx.Lang)
	if body == "" {
		body = "…"
	}
	width := ctx.Width - 4
	if width < 10 {
		width = 10
	}
	lines = append(lines, theme.Base.Width(width).Render(body))
	return lines
}

func renderBadge(theme Theme, b LikeBadge) string {
	r := theme.Renderer
	if b.Liked {
		return r.NewStyle().Foreground(theme.Danger).Render(fmt.Sprintf("♥ %d", b.Count))
	}
	return r.NewStyle().Foreground(theme.Muted).Render(fmt.Sprintf("♡ %d", b.Count))
}

func cardFrame(theme Theme, ctx CardContext) lipgloss.Style {
	border := theme.Border
	if ctx.Focused {
		border = theme.Primary
	}
	w := ctx.Width - 2
	if w < 12 {
		w = 12
	}
	return theme.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(w)
}
