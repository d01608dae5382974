package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/tburn/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name string
	Key  rune
}

// Tabs defines all available tabs. Each shortcut is the first letter.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o'},
	{Name: "Prices", Key: 'p'},
	{Name: "Schedule", Key: 's'},
	{Name: "Events", Key: 'e'},
}

const tabSep = " "

// tabLabel returns the plain text of a tab as rendered.
func tabLabel(i, activeIdx int) string {
	name := Tabs[i].Name
	if i == activeIdx {
		return " " + name + " "
	}
	return "[" + name[:1] + "]" + name[1:]
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	dimKeyStyle := lipgloss.NewStyle().
		Foreground(t.TextDim)

	parts := make([]string, 0, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts = append(parts, activeStyle.Render(tabLabel(i, activeIdx)))
			continue
		}
		parts = append(parts, dimKeyStyle.Render("[")+keyStyle.Render(tab.Name[:1])+
			dimKeyStyle.Render("]")+inactiveStyle.Render(tab.Name[1:]))
	}

	bar := strings.Join(parts, tabSep)
	return lipgloss.NewStyle().MaxWidth(width).Render(bar)
}

// TabAtX returns the tab under column x, or -1.
func TabAtX(x, activeIdx int) int {
	pos := 0
	for i := range Tabs {
		w := lipgloss.Width(tabLabel(i, activeIdx))
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + len(tabSep)
	}
	return -1
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
