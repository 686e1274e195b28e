// tree.go - lazily loaded school hierarchy view over hierarchy.Store
package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/vanderheijden86/philoview/pkg/hierarchy"
)

// ChildrenLoadedMsg reports the end of a children fetch started from the tree.
type ChildrenLoadedMsg struct {
	ID     string
	Err    error
	Select bool // continue into a panel load on success
}

// SelectSchoolMsg asks the root model to show a school in the panel.
type SelectSchoolMsg struct {
	ID   string
	Name string
}

// TreeModel renders the store's visible rows and turns row activation into
// store operations and selection changes. The store stays the single source
// of node state; the tree only keeps the flattened rows and its cursor.
type TreeModel struct {
	store  *hierarchy.Store
	rows   []hierarchy.Row
	cursor int
	offset int // index of first rendered row
	width  int
	height int
	theme  Theme
	log    *zap.SugaredLogger

	spinner  spinner.Model
	spinning bool
	loading  map[string]bool
}

// NewTreeModel creates a tree over store.
func NewTreeModel(store *hierarchy.Store, theme Theme, log *zap.SugaredLogger) TreeModel {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.Renderer.NewStyle().Foreground(theme.Secondary)
	return TreeModel{
		store:   store,
		theme:   theme,
		log:     log,
		spinner: sp,
		loading: make(map[string]bool),
	}
}

// SetSize updates the available dimensions for the tree view
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureVisible()
}

// SetTheme swaps the theme, e.g. after a config reload.
func (t *TreeModel) SetTheme(theme Theme) {
	t.theme = theme
	t.spinner.Style = theme.Renderer.NewStyle().Foreground(theme.Secondary)
}

// Refresh re-reads the visible rows from the store, keeping the cursor on
// the same node when it is still visible.
func (t *TreeModel) Refresh() {
	current := t.SelectedID()
	t.rows = t.store.Visible()
	if current == "" || !t.SelectByID(current) {
		t.clampCursor()
	}
	t.ensureVisible()
}

// Activate runs the row activation protocol for id: re-highlight, then
// toggle a loaded node or fetch an unloaded one, then select it in the
// panel when it ends up expanded (or was freshly loaded).
func (t *TreeModel) Activate(id string) tea.Cmd {
	return t.activate(id, true)
}

// Open is Activate without the collapse half of the toggle: a loaded,
// expanded node stays expanded and is selected. Used by jumps.
func (t *TreeModel) Open(id string) tea.Cmd {
	return t.activate(id, false)
}

func (t *TreeModel) activate(id string, toggle bool) tea.Cmd {
	n, ok := t.store.Node(id)
	if !ok {
		return nil
	}
	t.highlight(id)
	t.SelectByID(id)

	if n.Loaded {
		expanded := n.Expanded
		if n.HasChildren {
			expanded = !toggle || !n.Expanded
			if err := t.store.SetExpanded(id, expanded); err != nil {
				t.log.Warnw("set expanded", "node", id, "error", err)
			}
		}
		t.Refresh()
		if toggle && !expanded {
			return nil
		}
		return selectCmd(id, n.DisplayName)
	}

	if t.loading[id] {
		return nil
	}
	return t.load(id, true)
}

// highlight keeps highlighted ancestors of id, clears every other
// highlight, and highlights id.
func (t *TreeModel) highlight(id string) {
	keep := map[string]bool{id: true}
	for _, a := range t.store.Ancestors(id) {
		if n, ok := t.store.Node(a); ok && n.Highlighted {
			keep[a] = true
		}
	}
	t.store.ClearHighlights(keep)
	_ = t.store.SetHighlighted(id, true)
}

func (t *TreeModel) load(id string, andSelect bool) tea.Cmd {
	t.loading[id] = true
	store := t.store
	fetch := func() tea.Msg {
		_, err := store.EnsureChildrenLoaded(context.Background(), id)
		return ChildrenLoadedMsg{ID: id, Err: err, Select: andSelect}
	}
	if t.spinning {
		return fetch
	}
	t.spinning = true
	return tea.Batch(fetch, t.spinner.Tick)
}

func selectCmd(id, name string) tea.Cmd {
	return func() tea.Msg { return SelectSchoolMsg{ID: id, Name: name} }
}

// Update handles fetch completions and spinner ticks.
func (t *TreeModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ChildrenLoadedMsg:
		delete(t.loading, msg.ID)
		if msg.Err != nil {
			t.log.Warnw("children load failed", "node", msg.ID, "error", msg.Err)
			t.Refresh()
			return nil
		}
		n, ok := t.store.Node(msg.ID)
		if !ok {
			return nil
		}
		if n.HasChildren {
			if err := t.store.SetExpanded(msg.ID, true); err != nil {
				t.log.Warnw("set expanded", "node", msg.ID, "error", err)
			}
		}
		t.Refresh()
		if !msg.Select {
			return nil
		}
		return selectCmd(msg.ID, n.DisplayName)

	case spinner.TickMsg:
		if len(t.loading) == 0 {
			t.spinning = false
			return nil
		}
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		return cmd
	}
	return nil
}

// IsLoading reports whether a fetch for id started from the tree is in flight.
func (t *TreeModel) IsLoading(id string) bool { return t.loading[id] }

// View renders the tree view.
func (t *TreeModel) View() string {
	if len(t.rows) == 0 {
		return t.renderEmptyState()
	}

	start, end := t.visibleRange()
	var sb strings.Builder
	for i := start; i < end; i++ {
		line := t.renderRow(t.rows[i])
		if i == t.cursor {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (t *TreeModel) renderEmptyState() string {
	r := t.theme.Renderer
	title := r.NewStyle().Foreground(t.theme.Primary).Bold(true).Render("Schools")
	muted := r.NewStyle().Foreground(t.theme.Muted).Render("No schools loaded.")
	return title + "\n\n" + muted
}

func (t *TreeModel) renderRow(row hierarchy.Row) string {
	r := t.theme.Renderer
	n := row.Node

	prefix := treePrefix(row)
	if prefix != "" {
		prefix = r.NewStyle().Foreground(t.theme.Muted).Render(prefix)
	}

	indicator := " "
	switch {
	case t.loading[n.ID]:
		indicator = t.spinner.View()
	case n.HasChildren && n.Expanded:
		indicator = r.NewStyle().Foreground(t.theme.Secondary).Render("▾")
	case n.HasChildren:
		indicator = r.NewStyle().Foreground(t.theme.Secondary).Render("▸")
	}

	avail := t.width - runewidth.StringWidth(treePrefix(row)) - 2
	if avail < 8 {
		avail = 8
	}
	name := runewidth.Truncate(n.DisplayName, avail, "…")
	if n.Highlighted {
		name = t.theme.Marked.Render(name)
	}
	return prefix + indicator + " " + name
}

// treePrefix draws the rails and branch for a row. Roots have none.
func treePrefix(row hierarchy.Row) string {
	if row.Depth == 0 {
		return ""
	}
	var sb strings.Builder
	for d := 1; d < row.Depth; d++ {
		if d < len(row.Rails) && row.Rails[d] {
			sb.WriteString("│   ")
		} else {
			sb.WriteString("    ")
		}
	}
	if row.Last {
		sb.WriteString("└── ")
	} else {
		sb.WriteString("├── ")
	}
	return sb.String()
}

// RowAt resolves a y offset inside the tree pane to a node id. Clicks
// below the last row resolve to nothing.
func (t *TreeModel) RowAt(y int) (string, bool) {
	if y < 0 {
		return "", false
	}
	start, end := t.visibleRange()
	idx := start + y
	if idx >= end {
		return "", false
	}
	return t.rows[idx].Node.ID, true
}

// SelectedID returns the node id under the cursor, or "".
func (t *TreeModel) SelectedID() string {
	if t.cursor >= 0 && t.cursor < len(t.rows) {
		return t.rows[t.cursor].Node.ID
	}
	return ""
}

// SelectByID moves the cursor to id. Returns false when id is not visible.
func (t *TreeModel) SelectByID(id string) bool {
	for i, row := range t.rows {
		if row.Node.ID == id {
			t.cursor = i
			t.ensureVisible()
			return true
		}
	}
	return false
}

// MoveDown moves the cursor down one row.
func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
		t.ensureVisible()
	}
}

// MoveUp moves the cursor up one row.
func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureVisible()
	}
}

// JumpToTop moves cursor to the first row.
func (t *TreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureVisible()
}

// JumpToBottom moves cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	if len(t.rows) > 0 {
		t.cursor = len(t.rows) - 1
		t.ensureVisible()
	}
}

// PageDown moves cursor down by half a viewport.
func (t *TreeModel) PageDown() {
	t.cursor += t.pageSize()
	t.clampCursor()
	t.ensureVisible()
}

// PageUp moves cursor up by half a viewport.
func (t *TreeModel) PageUp() {
	t.cursor -= t.pageSize()
	t.clampCursor()
	t.ensureVisible()
}

func (t *TreeModel) pageSize() int {
	if n := t.height / 2; n > 0 {
		return n
	}
	return 5
}

// JumpToParent moves cursor to the parent of the current row.
func (t *TreeModel) JumpToParent() {
	id := t.SelectedID()
	if parent, ok := t.store.Parent(id); ok {
		t.SelectByID(parent)
	}
}

// ExpandOrMoveToChild handles the → / l key:
//   - collapsed node with children: expand it (fetching first if needed)
//   - expanded node: move to its first child
//   - leaf: nothing
//
// Unlike Activate it never changes the panel selection.
func (t *TreeModel) ExpandOrMoveToChild() tea.Cmd {
	id := t.SelectedID()
	n, ok := t.store.Node(id)
	if !ok {
		return nil
	}
	if !n.Loaded {
		if t.loading[id] {
			return nil
		}
		return t.load(id, false)
	}
	if !n.HasChildren {
		return nil
	}
	if !n.Expanded {
		_ = t.store.SetExpanded(id, true)
		t.Refresh()
		return nil
	}
	if children, err := t.store.Children(id); err == nil && len(children) > 0 {
		t.SelectByID(children[0].ID)
	}
	return nil
}

// CollapseOrJumpToParent handles the ← / h key.
func (t *TreeModel) CollapseOrJumpToParent() {
	id := t.SelectedID()
	n, ok := t.store.Node(id)
	if !ok {
		return
	}
	if n.Expanded {
		_ = t.store.SetExpanded(id, false)
		t.Refresh()
		return
	}
	t.JumpToParent()
}

// visibleRange returns [start, end) of the rows that fit the pane.
func (t *TreeModel) visibleRange() (start, end int) {
	if len(t.rows) == 0 {
		return 0, 0
	}
	count := t.height
	if count <= 0 {
		count = 20
	}
	start = t.offset
	if start > len(t.rows) {
		start = len(t.rows)
	}
	end = start + count
	if end > len(t.rows) {
		end = len(t.rows)
	}
	return start, end
}

func (t *TreeModel) clampCursor() {
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *TreeModel) ensureVisible() {
	h := t.height
	if h <= 0 {
		h = 20
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+h {
		t.offset = t.cursor - h + 1
	}
	if max := len(t.rows) - h; t.offset > max {
		t.offset = max
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// NodeCount returns the number of visible rows.
func (t *TreeModel) NodeCount() int { return len(t.rows) }
