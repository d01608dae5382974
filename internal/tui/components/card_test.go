package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/tburn/internal/tui/theme"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRow(t *testing.T) {
	got := LayoutRow(10, 3)
	if len(got) != 3 || got[0] != 4 || got[1] != 3 || got[2] != 3 {
		t.Fatalf("LayoutRow(10, 3) = %v, want [4 3 3]", got)
	}
	if LayoutRow(10, 0) != nil {
		t.Fatal("LayoutRow(10, 0) != nil")
	}
}

func TestMetricCardRowWidth(t *testing.T) {
	theme.SetActive("flexoki-dark")

	row := MetricCardRow([]Card{
		{Label: "Estimated subsidy", Value: "0.42 NOK/kWh", Delta: "+0.05"},
		{Label: "Peak", Value: "unknown", Missing: true},
		{Label: "Monthly cost", Value: "512.50 NOK", Delta: "-1.00"},
	}, 90)

	for i, line := range strings.Split(row, "\n") {
		if w := lipgloss.Width(line); w != 90 {
			t.Fatalf("line %d width = %d, want 90", i, w)
		}
	}
}

func TestMetricCardDeltaColors(t *testing.T) {
	up := MetricCard(Card{Label: "x", Value: "1", Delta: "+1.00"}, 20)
	down := MetricCard(Card{Label: "x", Value: "1", Delta: "-1.00"}, 20)
	if up == down {
		t.Fatal("rising and falling deltas render identically")
	}
	if !strings.Contains(up, "\x1b[") {
		t.Fatal("card rendered without ANSI styling")
	}
}

func TestCardRowHeight(t *testing.T) {
	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)

	joined := CardRow([]string{tallCard, shortCard})
	if got, want := len(strings.Split(joined, "\n")), len(strings.Split(tallCard, "\n")); got != want {
		t.Fatalf("joined height = %d, want %d", got, want)
	}
}

func TestThemeByName(t *testing.T) {
	if got := theme.ByName("nord").Name; got != "nord" {
		t.Fatalf("ByName(nord) = %q", got)
	}
	if got := theme.ByName("missing").Name; got != "flexoki-dark" {
		t.Fatalf("ByName(missing) = %q, want flexoki-dark", got)
	}
}
