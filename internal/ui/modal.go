package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/session"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.KeyMsg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// conflictModal offers the three ways out of a start conflict. It stays open
// while a resume or replace is pending, until a session is adopted or the
// attempt is cancelled.
type conflictModal struct {
	ctx      context.Context
	ctrl     Controller
	conflict session.Conflict
	pending  string
	lastErr  string
}

func newConflictModal(ctx context.Context, ctrl Controller, c session.Conflict) conflictModal {
	return conflictModal{ctx: ctx, ctrl: ctrl, conflict: c}
}

func (m conflictModal) Update(msg tea.KeyMsg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Resume):
		m.pending = "Resuming..."
		return m, intentCmd(m.ctx, "resume", m.ctrl.ResumeConflict), false
	case key.Matches(msg, keys.Replace):
		m.pending = "Ending existing session..."
		return m, intentCmd(m.ctx, "replace", m.ctrl.ReplaceConflict), false
	case key.Matches(msg, keys.Cancel):
		return m, intentCmd(m.ctx, "cancel", m.ctrl.CancelConflict), true
	}
	return m, nil, false
}

func (m conflictModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render("Session already active"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("Another session holds the recording slot."))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Session  "))
	b.WriteString(styles.Text.Render(m.conflict.SessionID))
	if !m.conflict.StartedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render("Started  "))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%s (%s ago)",
			m.conflict.StartedAt.Local().Format("15:04:05"),
			formatElapsed(time.Since(m.conflict.StartedAt)))))
	}
	b.WriteString("\n\n")
	if m.pending != "" {
		b.WriteString(styles.InfoText.Render(m.pending))
		b.WriteString("\n\n")
	}
	if m.lastErr != "" {
		b.WriteString(styles.DangerText.Render(m.lastErr))
		b.WriteString("\n\n")
	}
	b.WriteString(modalChoices(theme, []modalChoice{
		{"r", "Resume existing"},
		{"n", "End it & start new"},
		{"c", "Cancel"},
	}))

	return placeModal(theme, width, height, theme.Warning, b.String())
}

// confirmModal asks whether to start although some included devices are not
// streaming.
type confirmModal struct {
	ctx     context.Context
	ctrl    Controller
	devices []string
}

func newConfirmModal(ctx context.Context, ctrl Controller, devices []string) confirmModal {
	return confirmModal{ctx: ctx, ctrl: ctrl, devices: append([]string(nil), devices...)}
}

func (m confirmModal) Update(msg tea.KeyMsg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Yes):
		return m, intentCmd(m.ctx, "start", func(ctx context.Context) error {
			return m.ctrl.RequestStart(ctx, true)
		}), true
	case key.Matches(msg, keys.No):
		return m, intentCmd(m.ctx, "dismiss", m.ctrl.DismissConfirmation), true
	}
	return m, nil, false
}

func (m confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Start session?"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("These devices are not streaming:"))
	b.WriteString("\n")
	for _, name := range m.devices {
		b.WriteString(styles.WarningText.Render("  • " + name))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(modalChoices(theme, []modalChoice{
		{"y", "Start anyway"},
		{"n", "Go back"},
	}))

	return placeModal(theme, width, height, theme.Accent, b.String())
}

// operationsModal lists the hub's operations for one device. A digit runs
// the matching operation.
type operationsModal struct {
	ctx      context.Context
	ctrl     Controller
	deviceID string
	device   string
	ops      []hub.Operation
}

const maxOperations = 9

func newOperationsModal(ctx context.Context, ctrl Controller, deviceID, device string, ops []hub.Operation) operationsModal {
	if len(ops) > maxOperations {
		ops = ops[:maxOperations]
	}
	return operationsModal{ctx: ctx, ctrl: ctrl, deviceID: deviceID, device: device, ops: ops}
}

func (m operationsModal) Update(msg tea.KeyMsg, keys keyMap) (Modal, tea.Cmd, bool) {
	if key.Matches(msg, keys.Cancel) {
		return m, nil, true
	}
	n, err := strconv.Atoi(msg.String())
	if err != nil || n < 1 || n > len(m.ops) {
		return m, nil, false
	}
	op := m.ops[n-1]
	id := m.deviceID
	return m, intentCmd(m.ctx, op.Title(), func(ctx context.Context) error {
		return m.ctrl.ExecuteOperation(ctx, id, op.Name)
	}), true
}

func (m operationsModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(m.device))
	b.WriteString("\n\n")
	for i, op := range m.ops {
		style := styles.Text
		if op.Variant == "destructive" {
			style = styles.DangerText
		}
		b.WriteString(styles.MutedText.Render(strconv.Itoa(i+1) + "  "))
		b.WriteString(style.Render(op.Title()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(modalChoices(theme, []modalChoice{
		{"1-" + strconv.Itoa(len(m.ops)), "Run"},
		{"esc", "Close"},
	}))

	return placeModal(theme, width, height, theme.Accent, b.String())
}

type modalChoice struct {
	key  string
	desc string
}

func modalChoices(theme Theme, choices []modalChoice) string {
	styles := theme.Styles()
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning)).Bold(true)
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		parts = append(parts, keyStyle.Render("["+c.key+"]")+" "+styles.Text.Render(c.desc))
	}
	return strings.Join(parts, "   ")
}

func placeModal(theme Theme, width, height int, border, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Render(content)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
