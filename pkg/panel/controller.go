// Package panel owns the "selected school → detail + content feed" pipeline:
// it resets the feed cursor on selection, loads the detail and the first
// page independently, extends the feed on scroll, and discards responses
// that belong to an earlier selection.
package panel

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vanderheijden86/philoview/pkg/model"
)

// Source is the backend the panel reads from.
type Source interface {
	Detail(ctx context.Context, id string) (model.SchoolDetail, error)
	FirstPage(ctx context.Context, id string) ([]model.ContentItem, error)
	MoreContents(ctx context.Context, id string, page, size int) (model.FeedPage, error)
}

// FeedRoot is the rendered feed handed to widget attachers.
type FeedRoot interface {
	SchoolID() string
	Items() []model.ContentItem
}

// ContentWidgetAttacher wires per-card widgets onto feed content. It is
// called after every feed mutation and must tolerate seeing the same cards
// again.
type ContentWidgetAttacher interface {
	Attach(root FeedRoot)
}

// AttacherFunc adapts a function to ContentWidgetAttacher.
type AttacherFunc func(root FeedRoot)

func (f AttacherFunc) Attach(root FeedRoot) { f(root) }

// ErrStaleResponse marks a response that arrived after the selection it
// was for had changed. It is never surfaced as a failure.
var ErrStaleResponse = errors.New("stale response")

// Cursor is the pagination state of the current feed.
type Cursor struct {
	SchoolID  string
	Page      int
	HasMore   bool
	IsLoading bool
}

// FeedState describes the feed body.
type FeedState int

const (
	FeedEmpty FeedState = iota // nothing selected yet
	FeedLoading
	FeedReady
	FeedFailed
)

// Feed holds the items of the current selection.
type Feed struct {
	schoolID string
	items    []model.ContentItem
}

func (f *Feed) SchoolID() string           { return f.schoolID }
func (f *Feed) Items() []model.ContentItem { return f.items }
func (f *Feed) Len() int                   { return len(f.items) }

// DetailLoadedMsg carries a detail response.
type DetailLoadedMsg struct {
	SchoolID string
	Gen      uint64
	Detail   model.SchoolDetail
	Err      error
}

// FeedLoadedMsg carries the page 0 response.
type FeedLoadedMsg struct {
	SchoolID string
	Gen      uint64
	Items    []model.ContentItem
	Err      error
}

// PageLoadedMsg carries a scroll-triggered page response.
type PageLoadedMsg struct {
	SchoolID string
	Gen      uint64
	Page     int
	Items    []model.ContentItem
	HasMore  bool
	Err      error
}

// FeedUpdatedMsg is emitted after the feed body changed, so the view can
// re-layout and check the scroll threshold again.
type FeedUpdatedMsg struct {
	SchoolID string
	Count    int
}

// Controller is driven from a single goroutine (the bubbletea loop). Fetches
// run in commands; their results come back through Update.
type Controller struct {
	src      Source
	viewer   model.ViewerContext
	attacher ContentWidgetAttacher
	log      *zap.SugaredLogger
	pageSize int

	gen      uint64
	selected string
	cursor   Cursor
	ctx      context.Context // lives until the next Select
	cancel   context.CancelFunc

	detail      model.SchoolDetail
	detailShown bool

	feed      *Feed
	feedState FeedState
	feedErr   error

	discarded int
}

// Option configures a Controller.
type Option func(*Controller)

// WithViewer sets the viewer context used for edit links.
func WithViewer(v model.ViewerContext) Option {
	return func(c *Controller) { c.viewer = v }
}

// WithAttacher sets the widget attacher.
func WithAttacher(a ContentWidgetAttacher) Option {
	return func(c *Controller) { c.attacher = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) { c.log = l }
}

// WithPageSize sets the page size of scroll-triggered fetches.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a controller with nothing selected.
func New(src Source, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		log:      zap.NewNop().Sugar(),
		pageSize: 10,
		feed:     &Feed{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select makes id the current selection: the previous cursor's in-flight
// requests are cancelled, the cursor is reset, and the detail and first
// page are fetched independently.
func (c *Controller) Select(id string) tea.Cmd {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx, c.cancel = ctx, cancel

	c.gen++
	c.selected = id
	c.cursor = Cursor{SchoolID: id, Page: 0, HasMore: true, IsLoading: false}
	c.feed = &Feed{schoolID: id}
	c.feedState = FeedLoading
	c.feedErr = nil

	c.log.Debugw("select", "school", id, "gen", c.gen)
	return tea.Batch(
		c.fetchDetail(ctx, id, c.gen),
		c.fetchFirstPage(ctx, id, c.gen),
	)
}

// OnScrollNearBottom fetches the next page unless a page is already in
// flight, the feed is exhausted, or there is no ready feed.
func (c *Controller) OnScrollNearBottom() tea.Cmd {
	if c.cursor.IsLoading || !c.cursor.HasMore || c.selected == "" || c.feedState != FeedReady {
		return nil
	}
	c.cursor.Page++
	c.cursor.IsLoading = true
	return c.fetchPage(c.ctx, c.selected, c.cursor.Page, c.gen)
}

// Update applies panel messages. Other messages are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		c.applyDetail(msg)
	case FeedLoadedMsg:
		return c.applyFirstPage(msg)
	case PageLoadedMsg:
		return c.applyPage(msg)
	}
	return nil
}

func (c *Controller) isStale(schoolID string, gen uint64) bool {
	return schoolID != c.cursor.SchoolID || gen != c.gen
}

func (c *Controller) discard(kind, schoolID string, gen uint64) {
	c.discarded++
	c.log.Debugw("discarding response", "kind", kind, "school", schoolID, "gen", gen,
		"current", c.cursor.SchoolID, "error", ErrStaleResponse)
}

func (c *Controller) applyDetail(msg DetailLoadedMsg) {
	if c.isStale(msg.SchoolID, msg.Gen) {
		c.discard("detail", msg.SchoolID, msg.Gen)
		return
	}
	if msg.Err != nil {
		c.log.Warnw("detail load failed", "school", msg.SchoolID, "error", msg.Err)
		return
	}
	if msg.Detail.Empty() {
		c.log.Infow("detail: unknown school", "school", msg.SchoolID)
		return
	}
	c.detail = msg.Detail
	c.detailShown = true
}

func (c *Controller) applyFirstPage(msg FeedLoadedMsg) tea.Cmd {
	if c.isStale(msg.SchoolID, msg.Gen) {
		c.discard("feed", msg.SchoolID, msg.Gen)
		return nil
	}
	if msg.Err != nil {
		c.log.Warnw("feed load failed", "school", msg.SchoolID, "error", msg.Err)
		c.feedState = FeedFailed
		c.feedErr = msg.Err
		c.cursor.HasMore = false
		return c.updated()
	}
	c.feed = &Feed{schoolID: msg.SchoolID, items: msg.Items}
	c.feedState = FeedReady
	c.attach()
	return c.updated()
}

func (c *Controller) applyPage(msg PageLoadedMsg) tea.Cmd {
	if c.isStale(msg.SchoolID, msg.Gen) {
		c.discard("page", msg.SchoolID, msg.Gen)
		return nil
	}
	c.cursor.IsLoading = false

	if msg.Err != nil {
		c.log.Warnw("page load failed", "school", msg.SchoolID, "page", msg.Page, "error", msg.Err)
		c.cursor.HasMore = false
		return nil
	}
	if len(msg.Items) == 0 {
		c.cursor.HasMore = false
		return nil
	}
	c.feed.items = append(c.feed.items, msg.Items...)
	c.cursor.HasMore = msg.HasMore
	c.attach()
	return c.updated()
}

func (c *Controller) attach() {
	if c.attacher != nil {
		c.attacher.Attach(c.feed)
	}
}

func (c *Controller) updated() tea.Cmd {
	ev := FeedUpdatedMsg{SchoolID: c.feed.schoolID, Count: c.feed.Len()}
	return func() tea.Msg { return ev }
}

func (c *Controller) fetchDetail(ctx context.Context, id string, gen uint64) tea.Cmd {
	src := c.src
	return func() tea.Msg {
		d, err := src.Detail(ctx, id)
		return DetailLoadedMsg{SchoolID: id, Gen: gen, Detail: d, Err: err}
	}
}

func (c *Controller) fetchFirstPage(ctx context.Context, id string, gen uint64) tea.Cmd {
	src := c.src
	return func() tea.Msg {
		items, err := src.FirstPage(ctx, id)
		return FeedLoadedMsg{SchoolID: id, Gen: gen, Items: items, Err: err}
	}
}

func (c *Controller) fetchPage(ctx context.Context, id string, page int, gen uint64) tea.Cmd {
	src, size := c.src, c.pageSize
	return func() tea.Msg {
		fp, err := src.MoreContents(ctx, id, page, size)
		return PageLoadedMsg{SchoolID: id, Gen: gen, Page: page, Items: fp.Contents, HasMore: fp.HasMore, Err: err}
	}
}

// Selected returns the selected school id, or "".
func (c *Controller) Selected() string { return c.selected }

// Cursor returns a copy of the feed cursor.
func (c *Controller) Cursor() Cursor { return c.cursor }

// Detail returns the displayed detail; ok is false until the first
// successful detail fetch.
func (c *Controller) Detail() (model.SchoolDetail, bool) { return c.detail, c.detailShown }

// Feed returns the current feed.
func (c *Controller) Feed() *Feed { return c.feed }

// FeedState returns the feed body state and, when failed, the error.
func (c *Controller) FeedState() (FeedState, error) { return c.feedState, c.feedErr }

// Discarded counts responses dropped by the stale-response guard.
func (c *Controller) Discarded() int { return c.discarded }

// Viewer returns the viewer context.
func (c *Controller) Viewer() model.ViewerContext { return c.viewer }

// ViewLink is the public page of the displayed detail.
func (c *Controller) ViewLink() string {
	if !c.detailShown {
		return ""
	}
	return model.SchoolViewPath(c.detail.ID.String())
}

// EditLink is the management page of the displayed detail for this viewer.
func (c *Controller) EditLink() string {
	if !c.detailShown {
		return ""
	}
	return c.viewer.SchoolEditPath(c.detail.ID.String())
}

// SetAttacher replaces the widget attacher and runs it over the current feed.
func (c *Controller) SetAttacher(a ContentWidgetAttacher) {
	c.attacher = a
	if c.feedState == FeedReady {
		c.attach()
	}
}

// Close cancels any in-flight requests.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
