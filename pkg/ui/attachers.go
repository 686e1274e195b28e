package ui

import (
	"github.com/vanderheijden86/philoview/pkg/panel"
)

// LikeBadge is the like state shown on a card.
type LikeBadge struct {
	Count int
	Liked bool
}

// LikeBadges derives like badges from the feed's like metadata. Attaching
// the same cards again rewrites identical badges.
type LikeBadges struct {
	school string
	badges map[string]LikeBadge
}

// NewLikeBadges returns an empty attacher.
func NewLikeBadges() *LikeBadges {
	return &LikeBadges{badges: make(map[string]LikeBadge)}
}

// Attach implements panel.ContentWidgetAttacher.
func (l *LikeBadges) Attach(root panel.FeedRoot) {
	if root.SchoolID() != l.school {
		l.school = root.SchoolID()
		l.badges = make(map[string]LikeBadge)
	}
	for _, item := range root.Items() {
		l.badges[item.ID.String()] = LikeBadge{Count: item.LikeCount, Liked: item.Liked}
	}
}

// Badge returns the badge for a content id.
func (l *LikeBadges) Badge(id string) (LikeBadge, bool) {
	b, ok := l.badges[id]
	return b, ok
}

// Len is the number of badged cards.
func (l *LikeBadges) Len() int { return len(l.badges) }

// CardLinks indexes each card's "view more" target: the content listing
// filtered by the card's school and philosopher.
type CardLinks struct {
	school string
	links  map[string]string
}

// NewCardLinks returns an empty attacher.
func NewCardLinks() *CardLinks {
	return &CardLinks{links: make(map[string]string)}
}

// Attach implements panel.ContentWidgetAttacher.
func (c *CardLinks) Attach(root panel.FeedRoot) {
	if root.SchoolID() != c.school {
		c.school = root.SchoolID()
		c.links = make(map[string]string)
	}
	for _, item := range root.Items() {
		c.links[item.ID.String()] = item.ViewMoreURL()
	}
}

// Link returns the site path for a content id.
func (c *CardLinks) Link(id string) (string, bool) {
	l, ok := c.links[id]
	return l, ok
}

// Len is the number of indexed cards.
func (c *CardLinks) Len() int { return len(c.links) }

type multiAttacher []panel.ContentWidgetAttacher

func (m multiAttacher) Attach(root panel.FeedRoot) {
	for _, a := range m {
		a.Attach(root)
	}
}

// MultiAttacher fans a feed mutation out to every attacher in order.
func MultiAttacher(attachers ...panel.ContentWidgetAttacher) panel.ContentWidgetAttacher {
	var out multiAttacher
	for _, a := range attachers {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
