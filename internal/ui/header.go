package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sessionctl/internal/session"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newPaint(m.theme.Surface)
	sep := bg.Gap(2)
	v := m.view

	parts := []string{bg.Text("sessionctl", styles.Logo)}

	if v.IsOffline() {
		last := "never"
		if !v.LastUpdated.IsZero() {
			last = v.LastUpdated.Local().Format("15:04:05")
		}
		parts = append(parts,
			bg.Text("HUB "+classifyConnectionError(v.LastError), styles.DangerText.Bold(true)),
			bg.Text("Retrying...", styles.WarningText.Bold(true)),
			bg.Text("last "+last, styles.MutedText),
		)
		return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
	}

	if v.LastUpdated.IsZero() {
		parts = append(parts, bg.Text("Connecting to hub...", styles.WarningText.Bold(true)))
		return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
	}

	parts = append(parts, bg.Text("● HUB", styles.SuccessText))

	phase := v.Session.Phase.String()
	parts = append(parts, styles.StatusStyle(phase).Render(strings.ToUpper(phase)))

	if v.Session.Busy || v.Buffer.Refreshing {
		parts = append(parts, bg.Text(m.spinner.View(), styles.InfoText))
	}

	parts = append(parts,
		bg.Text("Connected:", styles.MutedText)+bg.Gap(1)+
			bg.Text(fmt.Sprintf("%d", v.Connections()), styles.Text),
	)

	if v.Scanning {
		parts = append(parts, bg.Text("Scanning", styles.InfoText.Bold(true)))
	}

	modeStyle := styles.MutedText
	modeLabel := "off"
	if v.Session.Mode {
		modeStyle = styles.AccentText
		modeLabel = "on"
	}
	if m.width >= LayoutCompactWidth {
		parts = append(parts,
			bg.Text("Mode:", styles.MutedText)+bg.Gap(1)+bg.Text(modeLabel, modeStyle))
		if v.Session.Initiator == "" {
			parts = append(parts, bg.Text("no initiator", styles.WarningText))
		}
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newPaint(m.theme.Surface)

	var commands []hint

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []hint{
			{"Space", followLabel},
			{"j/k", "Scroll"},
			{"d", "Devices"},
			{"b", "Buffer"},
			{"?", "More"},
		}
	case ViewBuffer:
		commands = []hint{
			{"u", "Refresh"},
			{"f", "Retry failed"},
			{"X", "Clear"},
			{"d", "Devices"},
			{"l", "Log"},
			{"?", "More"},
		}
	default:
		commands = m.sessionCommands()
	}

	colon := bg.Sep(":")
	sep := bg.Gap(2)

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Text(c.key, styles.AccentText)+colon+bg.Text(c.desc, styles.MutedText))
	}

	segments = append(segments,
		bg.Text("T", styles.AccentText)+colon+bg.Text(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

type hint struct{ key, desc string }

// sessionCommands lists the hints that apply to the current phase.
func (m Model) sessionCommands() []hint {
	s := m.view.Session
	var out []hint
	add := func(k, d string) { out = append(out, hint{k, d}) }

	switch {
	case s.ID != "":
		add("x", "End")
	case s.Phase == session.Starting:
		add("a", "Abort")
	case s.CanStart:
		add("s", "Start")
	default:
		add("c", "Check")
	}
	add("Space", "Include")
	add("enter", "Stream")
	add("r", "Scan")
	add("m", "Mode")
	if s.LastError != "" {
		add("C", "Clear error")
	}
	add("b", "Buffer")
	add("l", "Log")
	add("?", "More")
	return out
}
