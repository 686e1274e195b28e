package model

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ID is a server-issued identifier. The backend serializes ids as JSON
// numbers; the client treats them as opaque strings.
type ID string

// UnmarshalJSON accepts a number, a string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(data)
	return nil
}

func (id ID) String() string { return string(id) }

// UnnamedLabel is shown for nodes the server returned without any name.
const UnnamedLabel = "Unnamed"

// NodeRef is one entry of the children endpoint.
type NodeRef struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	NameEn      string `json:"nameEn,omitempty"`
	ParentID    ID     `json:"parentId,omitempty"`
	DisplayName string `json:"displayName"`
	HasChildren bool   `json:"hasChildren"`
}

// Label returns displayName, falling back to name.
func (r NodeRef) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Name != "" {
		return r.Name
	}
	return UnnamedLabel
}

// Node is one school in the hierarchy together with its view state.
//
// Invariants: !Loaded implies !Expanded, and !HasChildren implies !Expanded.
type Node struct {
	ID          string
	DisplayName string
	HasChildren bool
	Loaded      bool
	Expanded    bool
	Highlighted bool
}

// NodeFromRef builds a fresh, collapsed, unloaded node.
func NodeFromRef(r NodeRef) Node {
	return Node{
		ID:          r.ID.String(),
		DisplayName: r.Label(),
		HasChildren: r.HasChildren,
	}
}

// SchoolDetail is the payload of the detail endpoint. An unknown school
// comes back as an empty object.
type SchoolDetail struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	NameEn      string `json:"nameEn,omitempty"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	ParentID    ID     `json:"parentId,omitempty"`
}

// Empty reports whether the server had no school for the requested id.
func (d SchoolDetail) Empty() bool { return d.ID == "" }

// Title returns the best display title, or an em placeholder.
func (d SchoolDetail) Title() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	if d.Name != "" {
		return d.Name
	}
	return "—"
}

// SchoolRef is the school cross-reference carried by a content item.
type SchoolRef struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	NameEn      string     `json:"nameEn,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Parent      *SchoolRef `json:"parent,omitempty"`
}

// LocalizedName picks the English name for "en" when present.
func (s *SchoolRef) LocalizedName(lang string) string {
	if s == nil {
		return ""
	}
	return localizedName(lang, s.NameEn, s.DisplayName, s.Name)
}

// PhilosopherRef is the philosopher cross-reference carried by a content item.
type PhilosopherRef struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	NameEn      string `json:"nameEn,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Era         string `json:"era,omitempty"`
}

// LocalizedName picks the English name for "en" when present.
func (p *PhilosopherRef) LocalizedName(lang string) string {
	if p == nil {
		return ""
	}
	return localizedName(lang, p.NameEn, p.DisplayName, p.Name)
}

// AuthorRef is the submitting user of a content item.
type AuthorRef struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
}

func localizedName(lang, en, display, name string) string {
	if lang == LangEnglish && en != "" {
		return en
	}
	if display != "" {
		return display
	}
	return name
}

// ContentItem is one entry of a school's content feed. It is rendered,
// never mutated, by the client.
type ContentItem struct {
	ID          ID              `json:"id"`
	Title       string          `json:"title,omitempty"`
	Content     string          `json:"content,omitempty"`
	ContentEn   string          `json:"contentEn,omitempty"`
	School      *SchoolRef      `json:"school,omitempty"`
	Philosopher *PhilosopherRef `json:"philosopher,omitempty"`
	User        *AuthorRef      `json:"user,omitempty"`
	LikeCount   int             `json:"likeCount"`
	Liked       bool            `json:"liked,omitempty"`
}

// DisplayText returns the body for the given language.
func (c ContentItem) DisplayText(lang string) string {
	if lang == LangEnglish && c.ContentEn != "" {
		return c.ContentEn
	}
	if c.Content != "" {
		return c.Content
	}
	return c.ContentEn
}

// ViewMoreURL is the site path listing contents filtered like this card.
func (c ContentItem) ViewMoreURL() string {
	var params []string
	if c.School != nil && c.School.ID != "" {
		params = append(params, "schoolId="+url.QueryEscape(c.School.ID.String()))
	}
	if c.Philosopher != nil && c.Philosopher.ID != "" {
		params = append(params, "philosopherId="+url.QueryEscape(c.Philosopher.ID.String()))
	}
	if len(params) == 0 {
		return "/contents"
	}
	return "/contents?" + strings.Join(params, "&")
}

// FeedPage is the payload of the paginated contents endpoint.
type FeedPage struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	Contents      []ContentItem `json:"contents"`
	HasMore       bool          `json:"hasMore"`
	TotalElements int           `json:"totalElements,omitempty"`
	CurrentPage   int           `json:"currentPage,omitempty"`
}

// Role is a viewer role as issued by the site.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Languages understood by the backend.
const (
	LangChinese = "zh"
	LangEnglish = "en"
)

// ViewerContext carries who is browsing and from where. It is read, never
// written, by the panel.
type ViewerContext struct {
	ViewerRole Role
	CurrentURL string
	Language   string
}

// EditPathPrefix returns the management area for the viewer's role.
func (v ViewerContext) EditPathPrefix() string {
	if v.ViewerRole == RoleModerator {
		return "/moderator"
	}
	return "/admin"
}

// SchoolViewPath is the public page of a school.
func SchoolViewPath(id string) string {
	return "/schools/filter/" + id
}

// SchoolEditPath is the management edit page of a school, redirecting back
// to the viewer's current URL.
func (v ViewerContext) SchoolEditPath(id string) string {
	return fmt.Sprintf("%s/schools/edit/%s?redirectUrl=%s",
		v.EditPathPrefix(), id, url.QueryEscape(v.CurrentURL))
}
