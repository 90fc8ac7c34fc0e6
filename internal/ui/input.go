package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sessionctl/internal/prefs"
	"github.com/five82/sessionctl/internal/session"
)

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs(m.view.Session.Mode)
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView((m.currentView + 1) % 3)

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView((m.currentView + 2) % 3)

	case key.Matches(msg, m.keys.ViewDevices), key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewDevices)

	case key.Matches(msg, m.keys.ViewBuffer):
		return m.switchView(ViewBuffer)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	}

	if cmd := m.sessionKey(msg); cmd != nil {
		return m, cmd
	}

	switch m.currentView {
	case ViewBuffer:
		return m.handleBufferKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleDevicesKey(msg)
	}
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	switch v {
	case ViewLogs:
		m.updateLogViewport()
		return m, m.refreshLogs()
	case ViewBuffer:
		if m.view.Buffer.Stats == nil && !m.view.Buffer.Refreshing {
			return m, m.refreshBuffer()
		}
	}
	return m, nil
}

// sessionKey maps the global session and fleet keys to intents. It returns
// nil when msg is not one of them.
func (m *Model) sessionKey(msg tea.KeyMsg) tea.Cmd {
	ctrl := m.ctrl
	switch {
	case key.Matches(msg, m.keys.StartSession):
		return intentCmd(m.ctx, "start", func(ctx context.Context) error {
			return ctrl.RequestStart(ctx, false)
		})
	case key.Matches(msg, m.keys.EndSession):
		return intentCmd(m.ctx, "end", ctrl.EndSession)
	case key.Matches(msg, m.keys.AbortStart):
		return intentCmd(m.ctx, "abort", ctrl.AbortStart)
	case key.Matches(msg, m.keys.CheckSession):
		return intentCmd(m.ctx, "check", ctrl.CheckForActiveSession)
	case key.Matches(msg, m.keys.ClearError):
		m.flash = ""
		return intentCmd(m.ctx, "clear", ctrl.ClearError)
	case key.Matches(msg, m.keys.ToggleMode):
		enabled := !m.view.Session.Mode
		m.savePrefs(enabled)
		return intentCmd(m.ctx, "session mode", func(ctx context.Context) error {
			return ctrl.SetSessionMode(ctx, enabled)
		})
	case key.Matches(msg, m.keys.ToggleScan):
		return intentCmd(m.ctx, "scan", ctrl.ToggleScan)
	case key.Matches(msg, m.keys.ResetDevices):
		return intentCmd(m.ctx, "reset", ctrl.ResetDevices)
	case key.Matches(msg, m.keys.DisconnectAll):
		return intentCmd(m.ctx, "disconnect all", ctrl.DisconnectAll)
	case key.Matches(msg, m.keys.StartAll):
		return intentCmd(m.ctx, "stream all", func(ctx context.Context) error {
			return ctrl.StartStreaming(ctx, "")
		})
	case key.Matches(msg, m.keys.StopAll):
		return intentCmd(m.ctx, "stop all", func(ctx context.Context) error {
			return ctrl.StopStreaming(ctx, "")
		})
	}
	return nil
}

// handleDevicesKey processes keyboard input for the devices view.
func (m Model) handleDevicesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	devices := m.view.Devices
	if len(devices) == 0 {
		return m, nil
	}
	idx := m.selectedIndex()

	switch {
	case key.Matches(msg, m.keys.Down):
		if idx < len(devices)-1 {
			m.selectedID = devices[idx+1].ID
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if idx > 0 {
			m.selectedID = devices[idx-1].ID
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.selectedID = devices[0].ID
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.selectedID = devices[len(devices)-1].ID
		return m, nil
	}

	id := devices[idx].ID
	ctrl := m.ctrl
	deviceIntent := func(name string, fn func(context.Context, string) error) tea.Cmd {
		return intentCmd(m.ctx, name, func(ctx context.Context) error { return fn(ctx, id) })
	}

	switch {
	case key.Matches(msg, m.keys.ToggleInclude):
		return m, deviceIntent("include", ctrl.ToggleIncluded)
	case key.Matches(msg, m.keys.ToggleStream):
		return m, deviceIntent("stream", ctrl.ToggleStreaming)
	case key.Matches(msg, m.keys.ToggleAutoStream):
		return m, deviceIntent("auto-stream", ctrl.ToggleAutoStream)
	case key.Matches(msg, m.keys.Connect):
		return m, deviceIntent("connect", ctrl.Connect)
	case key.Matches(msg, m.keys.Disconnect):
		return m, deviceIntent("disconnect", ctrl.Disconnect)
	case key.Matches(msg, m.keys.Operations):
		return m, fetchOperationsCmd(m.ctx, ctrl, id, devices[idx].Name)
	}
	return m, nil
}

// handleBufferKey processes keyboard input for the buffer view.
func (m Model) handleBufferKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	switch {
	case key.Matches(msg, m.keys.RefreshBuffer):
		return m, m.refreshBuffer()
	case key.Matches(msg, m.keys.ResetFailed):
		return m, intentCmd(m.ctx, "reset failed", func(ctx context.Context) error {
			_, err := ctrl.ResetFailedPackets(ctx, "")
			return err
		})
	case key.Matches(msg, m.keys.ClearBuffer):
		return m, intentCmd(m.ctx, "clear buffer", ctrl.ClearBuffer)
	}
	return m, nil
}

func (m Model) refreshBuffer() tea.Cmd {
	ctrl := m.ctrl
	return intentCmd(m.ctx, "refresh", func(ctx context.Context) error {
		_, err := ctrl.RefreshBuffer(ctx)
		return err
	})
}

func (m Model) savePrefs(sessionMode bool) {
	if m.prefsPath == "" {
		return
	}
	theme := m.theme.Name
	_, err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) {
		p.Theme = theme
		p.SessionMode = sessionMode
	})
	if err != nil {
		m.logger.Warn("save prefs failed", "path", m.prefsPath, "error", err)
	}
}

// intentCmd runs fn off the UI goroutine and reports the outcome.
func intentCmd(ctx context.Context, name string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return intentResultMsg{name: name, err: fn(ctx)}
	}
}

func fetchOperationsCmd(ctx context.Context, ctrl Controller, deviceID, device string) tea.Cmd {
	return func() tea.Msg {
		ops, err := ctrl.DeviceOperations(ctx, deviceID)
		return operationsMsg{deviceID: deviceID, device: device, ops: ops, err: err}
	}
}

func isConfirmation(err error) bool {
	var confirm *session.ConfirmationRequiredError
	return errors.As(err, &confirm)
}
