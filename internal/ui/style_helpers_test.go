package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestPaint_WidthsArePreserved(t *testing.T) {
	p := newPaint("#192330")
	style := lipgloss.NewStyle().Bold(true)

	tests := []struct {
		name string
		got  string
		want int
	}{
		{"empty", p.Text("", style), 0},
		{"single word", p.Text("HUB", style), 3},
		{"inner spaces", p.Text("no  initiator", style), 13},
		{"gap", p.Gap(3), 3},
		{"negative gap", p.Gap(-1), 0},
		{"join", p.Join([]string{"a", "b", "c"}, " | "), 9},
		{"fill", p.Fill("abc", 20), 20},
	}
	for _, tt := range tests {
		if w := lipgloss.Width(tt.got); w != tt.want {
			t.Errorf("%s: width = %d, want %d", tt.name, w, tt.want)
		}
	}
}
