package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/philoview/pkg/history"
)

// RecentPickerModel is the modal listing recently visited schools.
type RecentPickerModel struct {
	visits        []history.Visit
	currentID     string // school shown in the panel
	selectedIndex int
	width         int
	height        int
	theme         Theme
	now           func() time.Time
}

// NewRecentPickerModel creates a picker with the cursor on the first
// visit that is not the current school.
func NewRecentPickerModel(visits []history.Visit, currentID string, theme Theme) RecentPickerModel {
	idx := 0
	if len(visits) > 1 && visits[0].SchoolID == currentID {
		idx = 1
	}
	return RecentPickerModel{
		visits:        visits,
		currentID:     currentID,
		selectedIndex: idx,
		theme:         theme,
		now:           time.Now,
	}
}

// SetSize updates the picker dimensions
func (m *RecentPickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *RecentPickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *RecentPickerModel) MoveDown() {
	if m.selectedIndex < len(m.visits)-1 {
		m.selectedIndex++
	}
}

// Selected returns the highlighted visit.
func (m *RecentPickerModel) Selected() (history.Visit, bool) {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.visits) {
		return m.visits[m.selectedIndex], true
	}
	return history.Visit{}, false
}

// View renders the picker overlay
func (m *RecentPickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	t := m.theme

	boxWidth := 50
	if m.width < 60 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	var lines []string
	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		MarginBottom(1)
	lines = append(lines, titleStyle.Render("Recent Schools"))
	lines = append(lines, "")

	if len(m.visits) == 0 {
		lines = append(lines, t.Renderer.NewStyle().Foreground(t.Muted).Render("Nothing visited yet."))
	}

	nameWidth := boxWidth - 18
	for i, v := range m.visits {
		isSelected := i == m.selectedIndex

		itemStyle := t.Renderer.NewStyle()
		if isSelected {
			itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
		} else {
			itemStyle = itemStyle.Foreground(t.Text)
		}

		prefix := "  "
		if isSelected {
			prefix = "> "
		}

		name := v.Name
		if name == "" {
			name = "#" + v.SchoolID
		}
		name = runewidth.FillRight(runewidth.Truncate(name, nameWidth, "…"), nameWidth)

		suffix := t.Renderer.NewStyle().Foreground(t.Muted).Render(" " + relativeTime(m.now(), v.LastVisit))
		if v.SchoolID == m.currentID {
			suffix += " " + t.Renderer.NewStyle().Foreground(t.Secondary).Render("✓")
		}
		lines = append(lines, itemStyle.Render(prefix+name)+suffix)
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate | enter: open | esc: cancel"))

	boxStyle := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		boxStyle.Render(strings.Join(lines, "\n")),
	)
}

// relativeTime formats how long ago t was: "just now", "5m", "3h", "2d".
func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
