package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewDevices key.Binding
	ViewBuffer  key.Binding
	ViewLogs    key.Binding

	// Session
	StartSession  key.Binding
	EndSession    key.Binding
	AbortStart    key.Binding
	CheckSession  key.Binding
	ToggleMode    key.Binding
	ClearError    key.Binding
	ResetDevices  key.Binding
	ToggleScan    key.Binding
	DisconnectAll key.Binding
	StartAll      key.Binding
	StopAll       key.Binding

	// Device actions
	ToggleInclude    key.Binding
	ToggleStream     key.Binding
	ToggleAutoStream key.Binding
	Connect          key.Binding
	Disconnect       key.Binding
	Operations       key.Binding

	// Buffer actions
	RefreshBuffer key.Binding
	ResetFailed   key.Binding
	ClearBuffer   key.Binding

	// Navigation
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding

	// Logs
	ToggleFollow key.Binding

	// Modals
	Resume  key.Binding
	Replace key.Binding
	Cancel  key.Binding
	Yes     key.Binding
	No      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Return to devices"),
		),

		ViewDevices: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Devices view"),
		),
		ViewBuffer: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Buffer view"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Controller log"),
		),

		StartSession: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Start session"),
		),
		EndSession: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "End session"),
		),
		AbortStart: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Abort start"),
		),
		CheckSession: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Check for session"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Toggle session mode"),
		),
		ClearError: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Clear error"),
		),
		ResetDevices: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Reset devices"),
		),
		ToggleScan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Toggle scan"),
		),
		DisconnectAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Disconnect all"),
		),
		StartAll: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "Stream all"),
		),
		StopAll: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Stop all streams"),
		),

		ToggleInclude: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Include/exclude"),
		),
		ToggleStream: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Start/stop stream"),
		),
		ToggleAutoStream: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "Toggle auto-stream"),
		),
		Connect: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "Disconnect"),
		),
		Operations: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Device operations"),
		),

		RefreshBuffer: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Refresh counters"),
		),
		ResetFailed: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Retry failed packets"),
		),
		ClearBuffer: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "Clear buffer"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow mode"),
		),

		Resume: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Resume existing"),
		),
		Replace: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "End existing, start new"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c", "esc"),
			key.WithHelp("c/esc", "Cancel"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "Start anyway"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "Go back"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewDevices, k.ViewBuffer, k.ViewLogs, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.StartSession, k.EndSession, k.AbortStart, k.CheckSession, k.ToggleMode, k.ClearError},
		{k.ToggleInclude, k.ToggleStream, k.ToggleAutoStream, k.Connect, k.Disconnect, k.Operations},
		{k.ToggleScan, k.StartAll, k.StopAll, k.DisconnectAll, k.ResetDevices},
		{k.RefreshBuffer, k.ResetFailed, k.ClearBuffer},
		{k.ToggleFollow, k.CycleTheme, k.Help, k.Quit},
	}
}
