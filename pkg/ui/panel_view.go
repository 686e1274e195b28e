package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/philoview/pkg/model"
	"github.com/vanderheijden86/philoview/pkg/panel"
)

// PanelView lays out the detail and the content feed in a scrollable
// viewport and decides when the reader is close enough to the end to load
// the next page.
type PanelView struct {
	vp        viewport.Model
	md        *MarkdownRenderer
	markdown  bool // render descriptions through md instead of as plain text
	cards     CardRenderer
	theme     Theme
	lang      string
	threshold int // lines left below the viewport that trigger a page load

	likes *LikeBadges
	links *CardLinks

	school     string
	cardIDs    []string
	cardStarts []int // first content line of each card
}

// NewPanelView creates an empty panel.
func NewPanelView(theme Theme, cards CardRenderer, likes *LikeBadges, links *CardLinks, lang string, threshold int) PanelView {
	vp := viewport.New(60, 20)
	return PanelView{
		vp:        vp,
		md:        NewMarkdownRendererWithTheme(56, theme),
		cards:     cards,
		theme:     theme,
		lang:      lang,
		threshold: threshold,
		likes:     likes,
		links:     links,
	}
}

// SetSize resizes the viewport.
func (p *PanelView) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
	p.md.SetWidth(width - 4)
}

// SetCards swaps the card renderer (config reload).
func (p *PanelView) SetCards(c CardRenderer) { p.cards = c }

// SetMarkdown switches description rendering between plain wrapped text
// and markdown.
func (p *PanelView) SetMarkdown(on bool) { p.markdown = on }

// SetThreshold changes the near-bottom distance.
func (p *PanelView) SetThreshold(lines int) { p.threshold = lines }

// Render rebuilds the panel content from the controller's state. The
// scroll position is kept unless the selection changed.
func (p *PanelView) Render(ctrl *panel.Controller) {
	content := p.build(ctrl)
	p.vp.SetContent(content)
	if sel := ctrl.Selected(); sel != p.school {
		p.school = sel
		p.vp.GotoTop()
	}
}

// description renders a school description. The site shows it verbatim,
// so markdown is opt-in.
func (p *PanelView) description(text string) string {
	if p.markdown {
		if out, err := p.md.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return p.theme.Renderer.NewStyle().Width(max(p.vp.Width-4, 10)).Render(text)
}

func (p *PanelView) build(ctrl *panel.Controller) string {
	r := p.theme.Renderer
	muted := r.NewStyle().Foreground(p.theme.Muted)
	focused := p.focusedIndex()
	p.cardIDs = p.cardIDs[:0]
	p.cardStarts = p.cardStarts[:0]

	if ctrl.Selected() == "" {
		return muted.Render("Select a school on the left.")
	}

	var sb strings.Builder
	lines := 0
	write := func(s string) {
		sb.WriteString(s)
		sb.WriteString("\n")
		lines += strings.Count(s, "\n") + 1
	}

	if d, ok := ctrl.Detail(); ok {
		write(r.NewStyle().Foreground(p.theme.Primary).Bold(true).Render(localizedTitle(d, p.lang)))
		if d.Description != "" {
			write(p.description(d.Description))
		}
		write(muted.Render("view " + ctrl.ViewLink()))
	} else {
		write(muted.Render("Loading school…"))
	}
	write(r.NewStyle().Foreground(p.theme.Border).Render(strings.Repeat("─", max(p.vp.Width-2, 4))))

	state, ferr := ctrl.FeedState()
	items := ctrl.Feed().Items()
	switch {
	case state == panel.FeedLoading:
		write(muted.Render("Loading contents…"))
	case state == panel.FeedFailed:
		write(r.NewStyle().Foreground(p.theme.Danger).Render(fmt.Sprintf("Could not load contents: %v", ferr)))
	case len(items) == 0:
		write(muted.Render("No contents yet."))
	default:
		for i, item := range items {
			id := item.ID.String()
			p.cardIDs = append(p.cardIDs, id)
			p.cardStarts = append(p.cardStarts, lines)
			ctx := CardContext{Lang: p.lang, Width: p.vp.Width, Focused: i == focused}
			if p.likes != nil {
				ctx.Badge, ctx.Badged = p.likes.Badge(id)
			}
			write(p.cards.Render(item, ctx))
		}
		cur := ctrl.Cursor()
		switch {
		case cur.IsLoading:
			write(muted.Render("Loading more…"))
		case !cur.HasMore:
			write(muted.Render(fmt.Sprintf("— %d contents —", len(items))))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// focusedIndex is the card at the top of the viewport.
func (p *PanelView) focusedIndex() int {
	idx := -1
	for i, start := range p.cardStarts {
		if start > p.vp.YOffset {
			break
		}
		idx = i
	}
	if idx < 0 && len(p.cardStarts) > 0 {
		idx = 0
	}
	return idx
}

// FocusedCardLink returns the "view more" path of the card at the top of
// the viewport.
func (p *PanelView) FocusedCardLink() (string, bool) {
	idx := p.focusedIndex()
	if idx < 0 || idx >= len(p.cardIDs) || p.links == nil {
		return "", false
	}
	return p.links.Link(p.cardIDs[idx])
}

// NearBottom reports whether at most threshold lines remain below the
// viewport.
func (p *PanelView) NearBottom() bool {
	below := p.vp.TotalLineCount() - p.vp.YOffset - p.vp.Height
	return below <= p.threshold
}

// Update forwards scrolling input to the viewport.
func (p *PanelView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return cmd
}

// GotoTop scrolls to the top.
func (p *PanelView) GotoTop() { p.vp.GotoTop() }

// GotoBottom scrolls to the bottom.
func (p *PanelView) GotoBottom() { p.vp.GotoBottom() }

// CardCount is the number of rendered cards.
func (p *PanelView) CardCount() int { return len(p.cardIDs) }

// View renders the viewport.
func (p *PanelView) View() string { return p.vp.View() }

// localizedTitle picks the detail title for the language.
func localizedTitle(d model.SchoolDetail, lang string) string {
	if lang == model.LangEnglish && d.NameEn != "" {
		return d.NameEn
	}
	return d.Title()
}
