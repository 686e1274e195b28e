package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/philoview/pkg/model"
)

type fakeSource struct {
	mu      sync.Mutex
	details map[string]model.SchoolDetail
	first   map[string][]model.ContentItem
	pages   map[string][]model.FeedPage // pages[id][n-1] answers page n

	detailErr error
	firstErr  error
	pageErr   error

	detailCalls int
	firstCalls  int
	pageCalls   []int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		details: map[string]model.SchoolDetail{},
		first:   map[string][]model.ContentItem{},
		pages:   map[string][]model.FeedPage{},
	}
}

func (f *fakeSource) Detail(ctx context.Context, id string) (model.SchoolDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if f.detailErr != nil {
		return model.SchoolDetail{}, f.detailErr
	}
	return f.details[id], nil
}

func (f *fakeSource) FirstPage(ctx context.Context, id string) ([]model.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firstCalls++
	if f.firstErr != nil {
		return nil, f.firstErr
	}
	return f.first[id], nil
}

func (f *fakeSource) MoreContents(ctx context.Context, id string, page, size int) (model.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if f.pageErr != nil {
		return model.FeedPage{}, f.pageErr
	}
	pages := f.pages[id]
	if page-1 >= len(pages) {
		return model.FeedPage{Success: true}, nil
	}
	return pages[page-1], nil
}

func items(prefix string, n int) []model.ContentItem {
	out := make([]model.ContentItem, n)
	for i := range out {
		out[i] = model.ContentItem{ID: model.ID(fmt.Sprintf("%s%d", prefix, i)), Content: "quote"}
	}
	return out
}

// collect runs cmd (and any batch it expands into) and returns the
// resulting messages without applying them.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// run executes cmd and feeds every message back into the controller until
// no more commands are produced.
func run(c *Controller, cmd tea.Cmd) {
	for _, msg := range collect(cmd) {
		run(c, c.Update(msg))
	}
}

func TestSelectLoadsDetailAndFirstPage(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", DisplayName: "Stoicism", Description: "virtue"}
	src.first["4"] = items("s", 10)

	c := New(src)
	run(c, c.Select("4"))

	d, ok := c.Detail()
	require.True(t, ok)
	assert.Equal(t, "Stoicism", d.Title())

	state, err := c.FeedState()
	assert.Equal(t, FeedReady, state)
	assert.NoError(t, err)
	assert.Equal(t, 10, c.Feed().Len())
	assert.Equal(t, Cursor{SchoolID: "4", Page: 0, HasMore: true}, c.Cursor())
}

func TestPaginationAppendsUntilExhausted(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", Name: "Stoa"}
	src.first["4"] = items("p0-", 10)
	src.pages["4"] = []model.FeedPage{{Success: true, Contents: items("p1-", 5), HasMore: false}}

	c := New(src)
	run(c, c.Select("4"))
	run(c, c.OnScrollNearBottom())

	assert.Equal(t, 15, c.Feed().Len())
	assert.False(t, c.Cursor().HasMore)
	assert.False(t, c.Cursor().IsLoading)

	assert.Nil(t, c.OnScrollNearBottom())
	assert.Equal(t, []int{1}, src.pageCalls)
}

func TestScrollWhileLoadingIsNoop(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("p0-", 10)
	src.pages["4"] = []model.FeedPage{{Success: true, Contents: items("p1-", 10), HasMore: true}}

	c := New(src)
	run(c, c.Select("4"))

	first := c.OnScrollNearBottom()
	require.NotNil(t, first)
	assert.True(t, c.Cursor().IsLoading)
	assert.Nil(t, c.OnScrollNearBottom())

	run(c, first)
	assert.Equal(t, []int{1}, src.pageCalls)
	assert.Equal(t, 20, c.Feed().Len())
	assert.Equal(t, 1, c.Cursor().Page)
}

func TestScrollBeforeSelectionIsNoop(t *testing.T) {
	c := New(newFakeSource())
	assert.Nil(t, c.OnScrollNearBottom())
}

func TestScrollBeforeFirstPageIsNoop(t *testing.T) {
	src := newFakeSource()
	c := New(src)
	_ = c.Select("4")
	assert.Nil(t, c.OnScrollNearBottom())
}

func TestEmptyPageEndsFeed(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("p0-", 10)
	src.pages["4"] = []model.FeedPage{{Success: true, HasMore: true}}

	c := New(src)
	run(c, c.Select("4"))
	run(c, c.OnScrollNearBottom())

	assert.False(t, c.Cursor().HasMore)
	assert.Equal(t, 10, c.Feed().Len())
}

func TestPageFailureEndsFeed(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("p0-", 10)
	src.pageErr = errors.New("502")

	c := New(src)
	run(c, c.Select("4"))
	run(c, c.OnScrollNearBottom())

	assert.False(t, c.Cursor().HasMore)
	assert.False(t, c.Cursor().IsLoading)
	assert.Equal(t, 10, c.Feed().Len())
}

func TestStaleResponsesAreDiscarded(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", DisplayName: "Stoicism"}
	src.details["5"] = model.SchoolDetail{ID: "5", DisplayName: "Epicureanism"}
	src.first["4"] = items("a", 3)
	src.first["5"] = items("b", 2)

	c := New(src)
	slow := collect(c.Select("4"))
	run(c, c.Select("5"))

	for _, msg := range slow {
		assert.Nil(t, c.Update(msg))
	}
	assert.Equal(t, 2, c.Discarded())

	d, _ := c.Detail()
	assert.Equal(t, "Epicureanism", d.Title())
	assert.Equal(t, "5", c.Feed().SchoolID())
	assert.Equal(t, 2, c.Feed().Len())
}

func TestStalePageAfterReselectingSameSchool(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("a", 10)
	src.pages["4"] = []model.FeedPage{{Success: true, Contents: items("old", 10), HasMore: true}}

	c := New(src)
	run(c, c.Select("4"))
	pending := collect(c.OnScrollNearBottom())

	run(c, c.Select("4"))
	for _, msg := range pending {
		c.Update(msg)
	}
	assert.Equal(t, 10, c.Feed().Len())
	assert.Equal(t, 0, c.Cursor().Page)
	assert.False(t, c.Cursor().IsLoading)
}

func TestStalePageFromPreviousSchoolIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("a", 10)
	src.pages["4"] = []model.FeedPage{{Success: true, Contents: items("old", 10), HasMore: true}}
	src.first["5"] = items("b", 10)
	src.pages["5"] = []model.FeedPage{{Success: true, Contents: items("c", 10), HasMore: true}}

	c := New(src)
	run(c, c.Select("4"))
	pending := collect(c.OnScrollNearBottom())
	require.True(t, c.Cursor().IsLoading)

	run(c, c.Select("5"))
	require.Equal(t, "5", c.Cursor().SchoolID)
	require.False(t, c.Cursor().IsLoading)
	discarded := c.Discarded()

	for _, msg := range pending {
		assert.Nil(t, c.Update(msg))
	}
	assert.Equal(t, discarded+1, c.Discarded())
	assert.Equal(t, "5", c.Feed().SchoolID())
	assert.Equal(t, 10, c.Feed().Len())
	assert.Equal(t, "b0", c.Feed().Items()[0].ID.String())

	cur := c.Cursor()
	assert.Equal(t, "5", cur.SchoolID)
	assert.Equal(t, 0, cur.Page)
	assert.True(t, cur.HasMore)
	assert.False(t, cur.IsLoading)

	// The next scroll asks for school 5's first extra page.
	run(c, c.OnScrollNearBottom())
	assert.Equal(t, 20, c.Feed().Len())
	assert.Equal(t, 1, c.Cursor().Page)
}

func TestDetailFailureKeepsPreviousDetail(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", DisplayName: "Stoicism"}
	src.first["4"] = items("a", 1)
	src.first["5"] = items("b", 4)

	c := New(src)
	run(c, c.Select("4"))

	src.detailErr = errors.New("timeout")
	run(c, c.Select("5"))

	d, ok := c.Detail()
	require.True(t, ok)
	assert.Equal(t, "Stoicism", d.Title())
	assert.Equal(t, 4, c.Feed().Len(), "feed loads independently of the detail")
}

func TestUnknownSchoolDetailIgnored(t *testing.T) {
	src := newFakeSource()
	c := New(src)
	run(c, c.Select("404"))

	_, ok := c.Detail()
	assert.False(t, ok)
	assert.Empty(t, c.EditLink())
}

func TestFirstPageFailure(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", DisplayName: "Stoicism"}
	src.firstErr = errors.New("500")

	c := New(src)
	run(c, c.Select("4"))

	state, err := c.FeedState()
	assert.Equal(t, FeedFailed, state)
	assert.Error(t, err)
	assert.False(t, c.Cursor().HasMore)
	assert.Nil(t, c.OnScrollNearBottom())

	_, ok := c.Detail()
	assert.True(t, ok)
}

func TestAttacherRunsAfterEveryMutation(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("a", 10)
	src.pages["4"] = []model.FeedPage{
		{Success: true, Contents: items("b", 10), HasMore: true},
		{Success: true, Contents: items("c", 3), HasMore: false},
	}

	var seen []int
	c := New(src, WithAttacher(AttacherFunc(func(root FeedRoot) {
		assert.Equal(t, "4", root.SchoolID())
		seen = append(seen, len(root.Items()))
	})))

	run(c, c.Select("4"))
	run(c, c.OnScrollNearBottom())
	run(c, c.OnScrollNearBottom())

	assert.Equal(t, []int{10, 20, 23}, seen)
}

func TestFeedUpdatedMsg(t *testing.T) {
	src := newFakeSource()
	src.first["4"] = items("a", 2)

	c := New(src)
	var updates []FeedUpdatedMsg
	for _, msg := range collect(c.Select("4")) {
		for _, out := range collect(c.Update(msg)) {
			if u, ok := out.(FeedUpdatedMsg); ok {
				updates = append(updates, u)
			}
		}
	}
	assert.Equal(t, []FeedUpdatedMsg{{SchoolID: "4", Count: 2}}, updates)
}

func TestLinks(t *testing.T) {
	src := newFakeSource()
	src.details["4"] = model.SchoolDetail{ID: "4", DisplayName: "Stoicism"}

	c := New(src, WithViewer(model.ViewerContext{
		ViewerRole: model.RoleModerator,
		CurrentURL: "https://philo.example.org/schools",
	}))
	run(c, c.Select("4"))

	assert.Equal(t, "/schools/filter/4", c.ViewLink())
	assert.Equal(t, "/moderator/schools/edit/4?redirectUrl=https%3A%2F%2Fphilo.example.org%2Fschools", c.EditLink())
}

func TestSelectCancelsPreviousContext(t *testing.T) {
	src := &blockingSource{fakeSource: newFakeSource(), started: make(chan context.Context, 4)}
	c := New(src)
	cmd := c.Select("4")

	done := make(chan struct{})
	go func() {
		collect(cmd)
		close(done)
	}()
	ctx := <-src.started
	_ = c.Select("5")
	<-ctx.Done()
	<-done
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	c.Close()
}

type blockingSource struct {
	*fakeSource
	started chan context.Context
}

func (b *blockingSource) Detail(ctx context.Context, id string) (model.SchoolDetail, error) {
	b.started <- ctx
	<-ctx.Done()
	return model.SchoolDetail{}, ctx.Err()
}
