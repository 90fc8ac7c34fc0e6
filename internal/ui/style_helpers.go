package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// paint renders segments that sit on one shared background, such as the
// header bar and the log status line.
//
// lipgloss ends every rendered segment with an SGR reset, so anything
// written between two styled segments (a plain space, a separator) falls
// back to the terminal's own background and shows up as a hole in the bar.
// paint closes those holes by styling the glue as well as the words.
// See https://github.com/charmbracelet/lipgloss/discussions/78.
type paint struct {
	bg lipgloss.Style
	// one pre-rendered space, reused for word gaps
	space string
}

// newPaint returns a paint for the given background colour.
func newPaint(color string) paint {
	bg := lipgloss.NewStyle().Background(lipgloss.Color(color))
	return paint{bg: bg, space: bg.Render(" ")}
}

// Text renders text in style on the shared background. Multi-word text is
// split so that each inner space carries the background too; runs of spaces
// are kept.
func (p paint) Text(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	style = style.Background(p.bg.GetBackground())
	words := strings.Split(text, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, p.space)
}

// Gap returns n spaces on the background.
func (p paint) Gap(n int) string {
	if n == 1 {
		return p.space
	}
	return p.bg.Render(strings.Repeat(" ", max(n, 0)))
}

// Sep renders a literal separator on the background.
func (p paint) Sep(sep string) string {
	return p.bg.Render(sep)
}

// Join joins already rendered parts with a painted separator.
func (p paint) Join(parts []string, sep string) string {
	return strings.Join(parts, p.Sep(sep))
}

// Fill pads rendered content out to width so the background reaches the
// right edge of the screen.
func (p paint) Fill(content string, width int) string {
	return p.bg.Width(width).Render(content)
}
