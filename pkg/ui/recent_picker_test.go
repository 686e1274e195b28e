package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/philoview/pkg/history"
)

func testVisits(now time.Time) []history.Visit {
	return []history.Visit{
		{SchoolID: "5", Name: "Skepticism", LastVisit: now.Add(-30 * time.Second), Count: 2},
		{SchoolID: "1", Name: "Hellenistic", LastVisit: now.Add(-5 * time.Minute), Count: 1},
		{SchoolID: "6", Name: "", LastVisit: now.Add(-50 * time.Hour), Count: 4},
	}
}

func TestNewRecentPickerSkipsCurrentSchool(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewRecentPickerModel(testVisits(time.Now()), "5", theme)

	v, ok := picker.Selected()
	if !ok || v.SchoolID != "1" {
		t.Errorf("expected the cursor past the current school, got %+v", v)
	}

	picker = NewRecentPickerModel(testVisits(time.Now()), "9", theme)
	if v, _ := picker.Selected(); v.SchoolID != "5" {
		t.Errorf("expected the newest visit, got %+v", v)
	}
}

func TestRecentPickerNavigation(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewRecentPickerModel(testVisits(time.Now()), "", theme)

	picker.MoveUp()
	if picker.selectedIndex != 0 {
		t.Errorf("MoveUp at the top should stay, got %d", picker.selectedIndex)
	}
	picker.MoveDown()
	picker.MoveDown()
	picker.MoveDown()
	if picker.selectedIndex != 2 {
		t.Errorf("MoveDown should stop at the last visit, got %d", picker.selectedIndex)
	}
}

func TestRecentPickerEmpty(t *testing.T) {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewRecentPickerModel(nil, "", theme)

	if _, ok := picker.Selected(); ok {
		t.Error("empty picker should have no selection")
	}
	if !strings.Contains(picker.View(), "Nothing visited yet.") {
		t.Error("expected the empty-state text")
	}
}

func TestRecentPickerView(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	picker := NewRecentPickerModel(testVisits(now), "5", theme)
	picker.now = func() time.Time { return now }
	picker.SetSize(80, 24)

	view := picker.View()
	for _, want := range []string{"Recent Schools", "Skepticism", "Hellenistic", "#6", "just now", "5m", "2d", "✓"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{3 * time.Minute, "3m"},
		{5 * time.Hour, "5h"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		if got := relativeTime(now, now.Add(-tt.ago)); got != tt.want {
			t.Errorf("relativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
