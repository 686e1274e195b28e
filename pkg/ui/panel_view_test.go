package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/model"
	"github.com/vanderheijden86/philoview/pkg/panel"
)

func newTestPanelView(t *testing.T, threshold int) (*PanelView, *LikeBadges, *CardLinks) {
	t.Helper()
	theme := newTreeTestTheme()
	cards, err := NewCardRenderer(config.CardCrossRef, theme)
	if err != nil {
		t.Fatal(err)
	}
	likes, links := NewLikeBadges(), NewCardLinks()
	pv := NewPanelView(theme, cards, likes, links, model.LangEnglish, threshold)
	pv.SetSize(60, 10)
	return &pv, likes, links
}

// loadSchool selects id on ctrl and applies every response.
func loadSchool(ctrl *panel.Controller, id string) {
	for _, msg := range runCmd(ctrl.Select(id)) {
		ctrl.Update(msg)
	}
}

func TestPanelViewNothingSelected(t *testing.T) {
	pv, _, _ := newTestPanelView(t, 5)
	pv.Render(panel.New(newFakeBackend()))

	if !strings.Contains(pv.View(), "Select a school on the left.") {
		t.Errorf("unexpected view:\n%s", pv.View())
	}
}

func TestPanelViewRendersDetailAndCards(t *testing.T) {
	pv, likes, links := newTestPanelView(t, 5)
	ctrl := panel.New(newFakeBackend(), panel.WithAttacher(MultiAttacher(likes, links)))
	loadSchool(ctrl, "1")
	pv.Render(ctrl)

	view := pv.View()
	if !strings.Contains(view, "Hellenistic") {
		t.Errorf("expected English title:\n%s", view)
	}
	if !strings.Contains(view, "view /schools/filter/1") {
		t.Errorf("expected view link:\n%s", view)
	}
	if pv.CardCount() != 10 {
		t.Errorf("expected 10 cards, got %d", pv.CardCount())
	}
	if link, ok := pv.FocusedCardLink(); !ok || link != "/contents?schoolId=1" {
		t.Errorf("unexpected focused card link %q %v", link, ok)
	}
}

func TestPanelViewDescriptionIsPlainByDefault(t *testing.T) {
	pv, _, _ := newTestPanelView(t, 5)
	ctrl := panel.New(newFakeBackend())
	loadSchool(ctrl, "1")
	pv.Render(ctrl)

	if !strings.Contains(pv.View(), "Schools after *Alexander*.") {
		t.Errorf("description should be shown verbatim:\n%s", pv.View())
	}

	pv.SetMarkdown(true)
	pv.Render(ctrl)
	view := pv.View()
	if strings.Contains(view, "*Alexander*") || !strings.Contains(view, "Alexander") {
		t.Errorf("markdown mode should consume the emphasis markers:\n%s", view)
	}
}

func TestPanelViewWrapsPlainDescription(t *testing.T) {
	pv, _, _ := newTestPanelView(t, 5)
	pv.SetSize(30, 40)
	long := strings.Repeat("Zeno # taught _virtue_ ", 6)

	out := pv.description(long)
	for _, line := range strings.Split(out, "\n") {
		if w := lipgloss.Width(line); w > 26 {
			t.Errorf("line wider than the panel (%d): %q", w, line)
		}
	}
	if !strings.Contains(out, "_virtue_") || !strings.Contains(out, "#") {
		t.Errorf("plain text should keep markdown characters: %q", out)
	}
}

func TestPanelViewNearBottom(t *testing.T) {
	pv, likes, links := newTestPanelView(t, 2)
	ctrl := panel.New(newFakeBackend(), panel.WithAttacher(MultiAttacher(likes, links)))
	loadSchool(ctrl, "1")
	pv.Render(ctrl)

	if pv.NearBottom() {
		t.Fatal("the top of a long feed is not near the bottom")
	}
	pv.GotoBottom()
	if !pv.NearBottom() {
		t.Error("the end of the feed should be near the bottom")
	}
	pv.GotoTop()
	if pv.NearBottom() {
		t.Error("back at the top")
	}
}

func TestPanelViewKeepsScrollWithinSelection(t *testing.T) {
	pv, likes, links := newTestPanelView(t, 0)
	ctrl := panel.New(newFakeBackend(), panel.WithAttacher(MultiAttacher(likes, links)))
	loadSchool(ctrl, "1")
	pv.Render(ctrl)
	pv.GotoBottom()
	offset := pv.vp.YOffset

	pv.Render(ctrl)
	if pv.vp.YOffset != offset {
		t.Errorf("re-render moved the viewport from %d to %d", offset, pv.vp.YOffset)
	}

	loadSchool(ctrl, "8")
	pv.Render(ctrl)
	if pv.vp.YOffset != 0 {
		t.Errorf("a new selection should scroll to the top, got %d", pv.vp.YOffset)
	}
}

type failingFeed struct{ *fakeBackend }

func (f failingFeed) FirstPage(ctx context.Context, id string) ([]model.ContentItem, error) {
	return nil, errors.New("503 from upstream")
}

func TestPanelViewStates(t *testing.T) {
	pv, _, _ := newTestPanelView(t, 5)
	ctrl := panel.New(newFakeBackend())

	ctrl.Select("2")
	pv.Render(ctrl)
	if !strings.Contains(pv.View(), "Loading school…") || !strings.Contains(pv.View(), "Loading contents…") {
		t.Errorf("expected loading placeholders:\n%s", pv.View())
	}

	loadSchool(ctrl, "2")
	pv.Render(ctrl)
	if !strings.Contains(pv.View(), "No contents yet.") {
		t.Errorf("expected the empty feed text:\n%s", pv.View())
	}

	failing := panel.New(failingFeed{newFakeBackend()})
	loadSchool(failing, "1")
	pv.Render(failing)
	if !strings.Contains(pv.View(), "Could not load contents: 503 from upstream") {
		t.Errorf("expected the feed error:\n%s", pv.View())
	}
}
