package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/model"
	"github.com/vanderheijden86/philoview/pkg/panel"
)

func stoicQuote() model.ContentItem {
	return model.ContentItem{
		ID:        "42",
		Title:     "On anger",
		Content:   "你所掌控的只有你自己的判断。",
		ContentEn: "You have power over your mind, not outside events.",
		School: &model.SchoolRef{
			ID: "4", Name: "斯多葛学派", NameEn: "Stoicism",
			Parent: &model.SchoolRef{ID: "1", Name: "希腊化哲学", NameEn: "Hellenistic"},
		},
		Philosopher: &model.PhilosopherRef{ID: "9", Name: "马可·奥勒留", NameEn: "Marcus Aurelius", Era: "121–180"},
		User:        &model.AuthorRef{ID: "3", Username: "alice", Role: model.RoleModerator},
		LikeCount:   3,
		Liked:       true,
	}
}

type testFeed struct {
	school string
	items  []model.ContentItem
}

func (f testFeed) SchoolID() string           { return f.school }
func (f testFeed) Items() []model.ContentItem { return f.items }

func TestNewCardRenderer(t *testing.T) {
	theme := newTreeTestTheme()
	for _, variant := range []string{"", config.CardCrossRef, config.CardAuthor} {
		if _, err := NewCardRenderer(variant, theme); err != nil {
			t.Errorf("variant %q: %v", variant, err)
		}
	}
	if _, err := NewCardRenderer("poster", theme); err == nil {
		t.Error("expected an error for an unknown variant")
	}
}

func TestCrossrefCardEnglish(t *testing.T) {
	r, _ := NewCardRenderer(config.CardCrossRef, newTreeTestTheme())
	out := r.Render(stoicQuote(), CardContext{Lang: model.LangEnglish, Width: 120, Badged: true, Badge: LikeBadge{Count: 3, Liked: true}})

	for _, want := range []string{"Hellenistic › Stoicism", "On anger", "You have power over your mind", "Marcus Aurelius | 121–180", "♥ 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("card missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "alice") {
		t.Error("crossref card should not show the author")
	}
}

func TestCrossrefCardChineseFallsBack(t *testing.T) {
	r, _ := NewCardRenderer(config.CardCrossRef, newTreeTestTheme())
	item := stoicQuote()
	item.Content = ""
	out := r.Render(item, CardContext{Lang: model.LangChinese, Width: 120})

	if !strings.Contains(out, "You have power over your mind") {
		t.Errorf("empty Chinese body should fall back to English:\n%s", out)
	}
	if !strings.Contains(out, "希腊化哲学 › 斯多葛学派") {
		t.Errorf("expected Chinese chips:\n%s", out)
	}
	if strings.Contains(out, "♥") || strings.Contains(out, "♡") {
		t.Error("no badge should be drawn before the attacher ran")
	}
}

func TestAuthorCard(t *testing.T) {
	r, _ := NewCardRenderer(config.CardAuthor, newTreeTestTheme())
	out := r.Render(stoicQuote(), CardContext{Lang: model.LangEnglish, Width: 120, Badged: true, Badge: LikeBadge{Count: 0}})

	if !strings.Contains(out, "— alice (MODERATOR)") {
		t.Errorf("expected author line:\n%s", out)
	}
	if !strings.Contains(out, "♡ 0") {
		t.Errorf("expected an unliked badge:\n%s", out)
	}

	item := stoicQuote()
	item.User.Role = model.RoleUser
	if out := r.Render(item, CardContext{Width: 120}); strings.Contains(out, "(USER)") {
		t.Error("plain users should not get a role suffix")
	}
}

func TestLikeBadgesAttachIsIdempotent(t *testing.T) {
	likes := NewLikeBadges()
	first := []model.ContentItem{{ID: "1", LikeCount: 2}, {ID: "2", LikeCount: 5, Liked: true}}

	likes.Attach(testFeed{school: "4", items: first})
	likes.Attach(testFeed{school: "4", items: append(first, model.ContentItem{ID: "3"})})

	if likes.Len() != 3 {
		t.Fatalf("expected 3 badges, got %d", likes.Len())
	}
	if b, ok := likes.Badge("2"); !ok || b.Count != 5 || !b.Liked {
		t.Errorf("unexpected badge %+v", b)
	}

	likes.Attach(testFeed{school: "5", items: []model.ContentItem{{ID: "9"}}})
	if likes.Len() != 1 {
		t.Errorf("a new school should reset the badges, got %d", likes.Len())
	}
	if _, ok := likes.Badge("1"); ok {
		t.Error("badge of the previous school survived")
	}
}

func TestCardLinks(t *testing.T) {
	links := NewCardLinks()
	links.Attach(testFeed{school: "4", items: []model.ContentItem{stoicQuote(), {ID: "7"}}})

	if got, _ := links.Link("42"); got != "/contents?schoolId=4&philosopherId=9" {
		t.Errorf("unexpected link %q", got)
	}
	if got, _ := links.Link("7"); got != "/contents" {
		t.Errorf("unexpected bare link %q", got)
	}
	if _, ok := links.Link("nope"); ok {
		t.Error("unknown card should have no link")
	}
}

func TestMultiAttacherFansOutInOrder(t *testing.T) {
	var order []string
	a := panel.AttacherFunc(func(panel.FeedRoot) { order = append(order, "a") })
	b := panel.AttacherFunc(func(panel.FeedRoot) { order = append(order, "b") })

	MultiAttacher(a, nil, b).Attach(testFeed{school: "1"})

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("unexpected order %v", order)
	}
}
