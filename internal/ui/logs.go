package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sessionctl/internal/logtail"
)

// logState holds the controller log view state.
type logState struct {
	entries     []logtail.Entry
	follow      bool
	lastRefresh time.Time
	err         error
}

type logBatchMsg struct {
	entries []logtail.Entry
}

type logErrorMsg struct{ err error }

// updateLogViewport sizes the viewport and re-renders its content.
func (m *Model) updateLogViewport() {
	width := max(m.width-4, 0)
	height := max(m.height-5, 0)
	if m.logViewport.Width == 0 && m.logViewport.Height == 0 {
		m.logViewport = viewport.New(width, height)
	}
	m.logViewport.Width = width
	m.logViewport.Height = height
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	bg := newPaint(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	box := m.renderBox("Controller log", m.logViewport.View(), m.width, m.height-3, true)

	status := []string{bg.Text(truncate(m.logPath, 60), styles.FaintText)}
	if m.logState.follow {
		status = append(status, bg.Text("following", styles.SuccessText))
	} else {
		status = append(status, bg.Text("paused", styles.WarningText))
	}
	if m.logState.err != nil {
		status = append(status, bg.Text(m.logState.err.Error(), styles.DangerText))
	}
	return box + "\n" + bg.Fill(bg.Join(status, "  "), m.width)
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if len(m.logState.entries) == 0 {
		return styles.FaintText.Render("No log records yet.")
	}
	lines := make([]string, 0, len(m.logState.entries))
	for _, e := range m.logState.entries {
		lines = append(lines, m.formatLogEntry(e))
	}
	return strings.Join(lines, "\n")
}

// formatLogEntry renders one record as "15:04:05 LEVEL [component] msg k=v".
func (m Model) formatLogEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Time.IsZero() && e.Level == "" {
		return styles.Text.Render(e.Message)
	}

	var b strings.Builder
	b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(m.levelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)))
	if e.Component != "" {
		b.WriteString(" ")
		b.WriteString(styles.AccentText.Render("[" + e.Component + "]"))
	}
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(e.Message))
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(a.Key + "="))
		b.WriteString(styles.Text.Render(a.Value))
	}
	return b.String()
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch strings.ToUpper(level) {
	case "ERROR":
		return styles.DangerText
	case "WARN":
		return styles.WarningText
	case "DEBUG":
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
			return m, m.refreshLogs()
		}
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		m.logState.follow = false
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		m.logState.follow = true
	case key.Matches(msg, m.keys.Down):
		m.logViewport.LineDown(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.Up):
		m.logViewport.LineUp(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfViewDown()
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageUp):
		m.logViewport.HalfViewUp()
		m.logState.follow = false
	}
	return m, nil
}

// refreshLogs reads the log tail unless a read ran very recently.
func (m *Model) refreshLogs() tea.Cmd {
	if m.logPath == "" {
		return nil
	}
	if time.Since(m.logState.lastRefresh) < LogRefreshDebounce {
		return nil
	}
	m.logState.lastRefresh = time.Now()
	path := m.logPath
	return func() tea.Msg {
		entries, err := logtail.Tail(path, LogFetchLimit)
		if err != nil {
			return logErrorMsg{err: err}
		}
		return logBatchMsg{entries: entries}
	}
}

func (m *Model) handleLogBatch(msg logBatchMsg) {
	m.logState.entries = msg.entries
	m.logState.err = nil
	m.updateLogViewport()
}
