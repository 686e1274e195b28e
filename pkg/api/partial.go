package api

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vanderheijden86/philoview/pkg/model"
)

const (
	schoolLinkPrefix      = "/schools/filter/"
	philosopherLinkPrefix = "/philosophers"
)

// ParseContentCards extracts content cards from the page 0 fragment. A card
// is any element carrying data-content-id; cards appear in document order.
func ParseContentCards(r io.Reader) ([]model.ContentItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var items []model.ContentItem
	for _, card := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "data-content-id") != ""
	}) {
		items = append(items, parseCard(card))
	}
	return items, nil
}

func parseCard(card *html.Node) model.ContentItem {
	item := model.ContentItem{ID: model.ID(attr(card, "data-content-id"))}

	if h := find(card, isElement(atom.H3)); h != nil {
		item.Title = collapseSpace(textOf(h))
	}
	if p := find(card, isElement(atom.P)); p != nil {
		item.Content = strings.TrimSpace(textOf(p))
	}
	if en := find(card, hasAttr("data-content-en")); en != nil {
		item.ContentEn = attr(en, "data-content-en")
	}

	var schools []*model.SchoolRef
	for _, a := range findAll(card, isElement(atom.A)) {
		href := attr(a, "href")
		switch {
		case strings.HasPrefix(href, schoolLinkPrefix):
			id := strings.TrimPrefix(href, schoolLinkPrefix)
			schools = append(schools, &model.SchoolRef{ID: model.ID(id), Name: collapseSpace(textOf(a))})
		case strings.HasPrefix(href, philosopherLinkPrefix) && strings.Contains(href, "philosopherId="):
			item.Philosopher = parsePhilosopherLink(a, href)
		}
	}
	// The fragment renders the parent school chip before the school chip.
	switch len(schools) {
	case 0:
	case 1:
		item.School = schools[0]
	default:
		item.School = schools[len(schools)-1]
		item.School.Parent = schools[len(schools)-2]
	}

	if like := find(card, hasClass("like-btn")); like != nil {
		item.LikeCount, _ = strconv.Atoi(attr(like, "data-like-count"))
		item.Liked = attr(like, "data-liked") == "true"
	}
	if author := find(card, hasAttr("data-author-username")); author != nil {
		item.User = &model.AuthorRef{
			ID:       model.ID(attr(author, "data-author-id")),
			Username: attr(author, "data-author-username"),
			Role:     model.Role(attr(author, "data-author-role")),
		}
	}
	return item
}

func parsePhilosopherLink(a *html.Node, href string) *model.PhilosopherRef {
	p := &model.PhilosopherRef{}
	if u, err := url.Parse(href); err == nil {
		p.ID = model.ID(u.Query().Get("philosopherId"))
	}
	var spans []string
	for _, s := range findAll(a, isElement(atom.Span)) {
		if t := collapseSpace(textOf(s)); t != "" && t != "|" {
			spans = append(spans, t)
		}
	}
	switch {
	case len(spans) >= 2:
		p.Name, p.Era = spans[0], spans[1]
	case len(spans) == 1:
		p.Name = spans[0]
	default:
		p.Name = collapseSpace(textOf(a))
	}
	return p
}

// ParseTopLevel extracts the root schools rendered into #school-tree. When
// the page has no such container the whole document is searched.
func ParseTopLevel(r io.Reader) ([]model.NodeRef, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == "school-tree"
	})
	if root == nil {
		root = doc
	}

	var refs []model.NodeRef
	seen := make(map[string]bool)
	for _, link := range findAll(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass("school-link")(n) && attr(n, "data-id") != ""
	}) {
		id := attr(link, "data-id")
		if seen[id] {
			continue
		}
		seen[id] = true

		name := ""
		if span := find(link, isElement(atom.Span)); span != nil {
			name = collapseSpace(textOf(span))
		}
		if name == "" {
			name = collapseSpace(textOf(link))
		}
		refs = append(refs, model.NodeRef{ID: model.ID(id), DisplayName: name})
	}
	return refs, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func hasAttr(key string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key {
				return true
			}
		}
		return false
	}
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

// find returns the first descendant of n (excluding n) matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			return c
		}
		if m := find(c, pred); m != nil {
			return m
		}
	}
	return nil
}

// findAll returns matching descendants in document order. Matches are not
// searched for nested matches.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, pred)...)
	}
	return out
}

// textOf concatenates text nodes, turning <br> into newlines.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
