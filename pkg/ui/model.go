package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/hierarchy"
	"github.com/vanderheijden86/philoview/pkg/history"
	"github.com/vanderheijden86/philoview/pkg/model"
	"github.com/vanderheijden86/philoview/pkg/panel"
)

const (
	SplitViewThreshold = 100
	recentLimit        = 20
)

type focus int

const (
	focusTree focus = iota
	focusPanel
)

// RootsSource provides the top-level schools.
type RootsSource interface {
	TopLevel(ctx context.Context) ([]model.NodeRef, error)
}

// VisitLog records and lists visited schools.
type VisitLog interface {
	Record(ctx context.Context, schoolID, name string) error
	Recent(ctx context.Context, limit int) ([]history.Visit, error)
}

// RootsLoadedMsg carries the top-level schools.
type RootsLoadedMsg struct {
	Roots []model.NodeRef
	Err   error
}

// LookaheadDoneMsg is sent when the root children prefetch finishes.
type LookaheadDoneMsg struct {
	Err error
}

// JumpResultMsg is the outcome of locating a school anywhere in the tree.
type JumpResultMsg struct {
	ID   string
	Path []string
	Err  error
}

// RecentLoadedMsg carries the visit history for the recent picker.
type RecentLoadedMsg struct {
	Visits []history.Visit
	Err    error
}

// Options wires a Model to its collaborators. Store, Panel and Roots are
// required.
type Options struct {
	Roots   RootsSource
	Store   *hierarchy.Store
	Panel   *panel.Controller
	Likes   *LikeBadges
	Links   *CardLinks
	History VisitLog
	Writer  *LinkWriter
	Config  *config.Config
	Theme   Theme
	Logger  *zap.SugaredLogger
	// Select is revealed and opened once the roots are loaded.
	Select string
}

// Model is the root bubbletea model: the school tree on the left, the
// selected school's detail and contents on the right.
type Model struct {
	roots   RootsSource
	store   *hierarchy.Store
	ctrl    *panel.Controller
	history VisitLog
	writer  *LinkWriter
	cfg     *config.Config
	theme   Theme
	log     *zap.SugaredLogger

	tree      TreeModel
	panelView PanelView
	keys      keyMap
	help      help.Model

	focused     focus
	width       int
	height      int
	ready       bool
	isSplitView bool
	treeWidth   int

	rootsLoaded bool
	rootsErr    error
	pendingJump string

	showHelp   bool
	showRecent bool
	recent     RecentPickerModel
	jump       *huh.Form

	status    string
	statusErr bool
}

// NewModel builds the root model.
func NewModel(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	theme := opts.Theme
	if theme.Renderer == nil {
		theme = DefaultTheme(lipgloss.DefaultRenderer())
	}
	cards, err := NewCardRenderer(cfg.CardVariant, theme)
	if err != nil {
		log.Warnw("falling back to default cards", "error", err)
		cards, _ = NewCardRenderer(config.CardCrossRef, theme)
	}
	writer := opts.Writer
	if writer == nil {
		writer = NewLinkWriter(cfg.BaseURL)
	}

	m := Model{
		roots:       opts.Roots,
		store:       opts.Store,
		ctrl:        opts.Panel,
		history:     opts.History,
		writer:      writer,
		cfg:         cfg,
		theme:       theme,
		log:         log,
		tree:        NewTreeModel(opts.Store, theme, log),
		panelView:   NewPanelView(theme, cards, opts.Likes, opts.Links, cfg.Language, cfg.ScrollThresholdLines),
		keys:        defaultKeyMap(),
		help:        newHelpModel(theme),
		focused:     focusTree,
		pendingJump: strings.TrimSpace(opts.Select),
	}
	m.panelView.SetMarkdown(cfg.MarkdownDescriptions)
	return m
}

func (m Model) Init() tea.Cmd {
	return m.loadRoots()
}

func (m Model) loadRoots() tea.Cmd {
	src := m.roots
	return func() tea.Msg {
		roots, err := src.TopLevel(context.Background())
		return RootsLoadedMsg{Roots: roots, Err: err}
	}
}

func (m Model) lookahead(ids []string) tea.Cmd {
	store := m.store
	workers := m.cfg.LookaheadWorkers
	return func() tea.Msg {
		return LookaheadDoneMsg{Err: store.Lookahead(context.Background(), ids, workers)}
	}
}

func (m Model) jumpTo(id string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		path, err := store.Find(context.Background(), id)
		return JumpResultMsg{ID: id, Path: path, Err: err}
	}
}

func (m Model) recordVisit(id, name string) tea.Cmd {
	if m.history == nil {
		return nil
	}
	h, log := m.history, m.log
	return func() tea.Msg {
		if err := h.Record(context.Background(), id, name); err != nil {
			log.Warnw("record visit", "school", id, "error", err)
		}
		return nil
	}
}

func (m Model) loadRecent() tea.Cmd {
	if m.history == nil {
		return func() tea.Msg { return RecentLoadedMsg{Err: errors.New("history is disabled")} }
	}
	h := m.history
	return func() tea.Msg {
		visits, err := h.Recent(context.Background(), recentLimit)
		return RecentLoadedMsg{Visits: visits, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The jump form owns the keyboard while open.
	if m.jump != nil {
		if km, ok := msg.(tea.KeyMsg); ok {
			return m.updateJump(km)
		}
		f, cmd := m.jump.Update(msg)
		if form, ok := f.(*huh.Form); ok {
			m.jump = form
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.panelView.Render(m.ctrl)

	case RootsLoadedMsg:
		if msg.Err != nil {
			m.rootsErr = msg.Err
			m.setError(fmt.Sprintf("could not load schools: %v", msg.Err))
			break
		}
		m.rootsErr = nil
		m.rootsLoaded = true
		m.store.SetRoots(msg.Roots)
		m.tree.Refresh()
		ids := make([]string, 0, len(msg.Roots))
		for _, r := range msg.Roots {
			ids = append(ids, r.ID.String())
		}
		cmds = append(cmds, m.lookahead(ids))
		if m.pendingJump != "" {
			cmds = append(cmds, m.jumpTo(m.pendingJump))
			m.pendingJump = ""
		}

	case LookaheadDoneMsg:
		if msg.Err != nil {
			m.log.Warnw("lookahead", "error", msg.Err)
		}
		m.tree.Refresh()

	case JumpResultMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, hierarchy.ErrNotFound) {
				m.setError(fmt.Sprintf("school %s not found", msg.ID))
			} else {
				m.setError(fmt.Sprintf("jump to %s: %v", msg.ID, msg.Err))
			}
			break
		}
		if err := m.store.Reveal(msg.Path); err != nil {
			m.log.Warnw("reveal", "school", msg.ID, "error", err)
		}
		m.tree.Refresh()
		m.focused = focusTree
		cmds = append(cmds, m.tree.Open(msg.ID))

	case ChildrenLoadedMsg:
		cmds = append(cmds, m.tree.Update(msg))

	case spinner.TickMsg:
		cmds = append(cmds, m.tree.Update(msg))

	case SelectSchoolMsg:
		cmds = append(cmds, m.ctrl.Select(msg.ID), m.recordVisit(msg.ID, msg.Name))
		m.panelView.Render(m.ctrl)

	case panel.DetailLoadedMsg, panel.FeedLoadedMsg, panel.PageLoadedMsg:
		cmds = append(cmds, m.ctrl.Update(msg))
		m.panelView.Render(m.ctrl)

	case panel.FeedUpdatedMsg:
		// Widgets were attached during Update; nothing else to do.

	case RecentLoadedMsg:
		if msg.Err != nil {
			m.setError(fmt.Sprintf("recent schools: %v", msg.Err))
			break
		}
		m.recent = NewRecentPickerModel(msg.Visits, m.ctrl.Selected(), m.theme)
		m.recent.SetSize(m.width, m.bodyHeight())
		m.showRecent = true

	case LinkResultMsg:
		switch {
		case msg.Err != nil:
			m.setError(msg.Err.Error())
		case msg.Opened:
			m.setStatus("opened " + msg.URL)
		default:
			m.setStatus(fmt.Sprintf("copied %s: %s", msg.Kind, msg.URL))
		}

	case ConfigReloadedMsg:
		m.applyConfig(msg.Config)
		m.setStatus("config reloaded")

	case ConfigErrorMsg:
		m.setError(fmt.Sprintf("config not reloaded: %v", msg.Err))

	case tea.MouseMsg:
		if m.jump == nil && !m.showHelp && !m.showRecent {
			cmds = append(cmds, m.handleMouse(msg))
		}

	case tea.KeyMsg:
		m.status = ""
		cmds = append(cmds, m.handleKey(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc || msg.Type == tea.KeyCtrlC {
		m.jump = nil
		return m, nil
	}
	f, cmd := m.jump.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.jump = form
	}
	switch m.jump.State {
	case huh.StateCompleted:
		id := strings.TrimSpace(m.jump.GetString("id"))
		m.jump = nil
		if id == "" {
			return m, nil
		}
		// The form's own completion command is dropped: it may quit.
		return m, m.jumpTo(id)
	case huh.StateAborted:
		m.jump = nil
		return m, nil
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.showHelp = false
		}
		return nil
	}
	if m.showRecent {
		return m.handleRecentKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if msg.String() == "q" && !m.isSplitView && m.focused == focusPanel {
			m.focused = focusTree
			return nil
		}
		m.ctrl.Close()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return nil
	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return nil
	case key.Matches(msg, m.keys.Back):
		if m.focused == focusPanel {
			m.focused = focusTree
		}
		return nil
	case key.Matches(msg, m.keys.Jump):
		return m.openJump()
	case key.Matches(msg, m.keys.Recent):
		return m.loadRecent()
	case key.Matches(msg, m.keys.CopyView):
		return m.writer.Copy(LinkView, m.ctrl.ViewLink())
	case key.Matches(msg, m.keys.CopyEdit):
		return m.writer.Copy(LinkEdit, m.ctrl.EditLink())
	case key.Matches(msg, m.keys.CopyCard):
		link, _ := m.panelView.FocusedCardLink()
		return m.writer.Copy(LinkContent, link)
	case key.Matches(msg, m.keys.Open):
		if m.focused == focusPanel {
			if link, ok := m.panelView.FocusedCardLink(); ok {
				return m.writer.Open(LinkContent, link)
			}
		}
		return m.writer.Open(LinkView, m.ctrl.ViewLink())
	}

	if m.focused == focusPanel {
		return m.handlePanelKey(msg)
	}
	return m.handleTreeKey(msg)
}

func (m *Model) handleTreeKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageDown()
	case key.Matches(msg, m.keys.Expand):
		return m.tree.ExpandOrMoveToChild()
	case key.Matches(msg, m.keys.Collapse):
		m.tree.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.Activate):
		id := m.tree.SelectedID()
		if id == "" {
			return nil
		}
		cmd := m.tree.Activate(id)
		if !m.isSplitView && cmd != nil {
			m.focused = focusPanel
		}
		return cmd
	}
	return nil
}

func (m *Model) handlePanelKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Top):
		m.panelView.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.panelView.GotoBottom()
	default:
		if cmd := m.panelView.Update(msg); cmd != nil {
			return tea.Batch(cmd, m.afterPanelScroll())
		}
	}
	return m.afterPanelScroll()
}

func (m *Model) handleRecentKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back, m.keys.Recent, m.keys.Quit):
		m.showRecent = false
	case key.Matches(msg, m.keys.Up):
		m.recent.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.recent.MoveDown()
	case key.Matches(msg, m.keys.Activate):
		m.showRecent = false
		if v, ok := m.recent.Selected(); ok {
			return m.jumpTo(v.SchoolID)
		}
	}
	return nil
}

// afterPanelScroll refreshes the focused card and asks for the next page
// when the reader is close to the end.
func (m *Model) afterPanelScroll() tea.Cmd {
	m.panelView.Render(m.ctrl)
	if m.panelView.NearBottom() {
		return m.ctrl.OnScrollNearBottom()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	inTree := m.focused == focusTree
	if m.isSplitView {
		inTree = msg.X < m.treeWidth
	}

	if inTree {
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			// Header line plus the pane's top border.
			id, ok := m.tree.RowAt(msg.Y - 2)
			if !ok {
				return nil
			}
			m.focused = focusTree
			return m.tree.Activate(id)
		case tea.MouseButtonWheelUp:
			m.tree.MoveUp()
		case tea.MouseButtonWheelDown:
			m.tree.MoveDown()
		}
		return nil
	}

	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		m.focused = focusPanel
		return nil
	}
	if msg.Button != tea.MouseButtonWheelUp && msg.Button != tea.MouseButtonWheelDown {
		return nil
	}
	return tea.Batch(m.panelView.Update(msg), m.afterPanelScroll())
}

func (m *Model) openJump() tea.Cmd {
	m.jump = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("id").
				Title("Jump to school").
				Placeholder("school id").
				Validate(validateSchoolID),
		),
	).WithShowHelp(false).WithWidth(40)
	return m.jump.Init()
}

func validateSchoolID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("enter a school id")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("school ids are numeric")
		}
	}
	return nil
}

func (m *Model) toggleFocus() {
	if m.focused == focusTree {
		m.focused = focusPanel
	} else {
		m.focused = focusTree
	}
}

func (m *Model) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	cards, err := NewCardRenderer(cfg.CardVariant, m.theme)
	if err != nil {
		m.log.Warnw("config reload: card variant", "error", err)
	} else {
		m.panelView.SetCards(cards)
	}
	m.panelView.SetThreshold(cfg.ScrollThresholdLines)
	m.panelView.SetMarkdown(cfg.MarkdownDescriptions)
	m.cfg = cfg
	m.panelView.Render(m.ctrl)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) bodyHeight() int {
	// header + footer
	h := m.height - 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) layout() {
	m.isSplitView = m.width > SplitViewThreshold
	inner := m.bodyHeight() - 2 // pane borders

	if m.isSplitView {
		m.treeWidth = int(float64(m.width) * 0.4)
		m.tree.SetSize(m.treeWidth-2, inner)
		m.panelView.SetSize(m.width-m.treeWidth-2, inner)
	} else {
		m.treeWidth = m.width
		m.tree.SetSize(m.width-2, inner)
		m.panelView.SetSize(m.width-2, inner)
	}
	m.help.Width = m.width
	m.recent.SetSize(m.width, m.bodyHeight())
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyH := m.bodyHeight()

	var body string
	switch {
	case m.showHelp:
		ctx := ContextTree
		if m.focused == focusPanel {
			ctx = ContextPanel
		}
		body = RenderHelp(ctx, m.keys, m.theme, m.width, bodyH)
	case m.showRecent:
		body = m.recent.View()
	case m.jump != nil:
		box := m.theme.Renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.theme.Primary).
			Padding(1, 2).
			Render(m.jump.View())
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, box)
	case m.isSplitView:
		treePane := m.paneStyle(m.focused == focusTree).
			Width(m.treeWidth - 2).Height(bodyH - 2).
			Render(m.treeView())
		panelPane := m.paneStyle(m.focused == focusPanel).
			Width(m.width - m.treeWidth - 2).Height(bodyH - 2).
			Render(m.panelView.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, treePane, panelPane)
	default:
		content := m.treeView()
		if m.focused == focusPanel {
			content = m.panelView.View()
		}
		body = m.paneStyle(true).Width(m.width - 2).Height(bodyH - 2).Render(content)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) treeView() string {
	if !m.rootsLoaded {
		r := m.theme.Renderer
		if m.rootsErr != nil {
			return r.NewStyle().Foreground(m.theme.Danger).Render("Could not load schools.")
		}
		return r.NewStyle().Foreground(m.theme.Muted).Render("Loading schools…")
	}
	return m.tree.View()
}

func (m Model) paneStyle(focused bool) lipgloss.Style {
	border := m.theme.Border
	if focused {
		border = m.theme.Primary
	}
	return m.theme.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

func (m Model) renderHeader() string {
	r := m.theme.Renderer
	title := r.NewStyle().Foreground(m.theme.Primary).Bold(true).Render("pv")
	st := m.store.Stats()
	info := r.NewStyle().Foreground(m.theme.Muted).
		Render(fmt.Sprintf(" %d schools · %d loaded", st.Nodes, st.Loaded))
	if d, ok := m.ctrl.Detail(); ok {
		info += r.NewStyle().Foreground(m.theme.Subtext).Render(" · " + localizedTitle(d, m.cfg.Language))
	}
	return title + info
}

func (m Model) renderFooter() string {
	if m.status != "" {
		color := m.theme.Secondary
		if m.statusErr {
			color = m.theme.Danger
		}
		return m.theme.Renderer.NewStyle().Foreground(color).Render(m.status)
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// PanelFocused reports whether the panel has keyboard focus.
func (m Model) PanelFocused() bool { return m.focused == focusPanel }

// Status returns the current status line text.
func (m Model) Status() string { return m.status }
