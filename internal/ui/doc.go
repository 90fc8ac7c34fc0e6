// Package ui is the terminal consumer of the controller, built on Bubble Tea.
//
// The model polls Controller.View on a short tick and renders three views:
// devices (session panel above the device table), the upload buffer
// diagnostics, and a tail of the controller's own JSON log. Every key that
// changes something runs the matching controller intent in a tea.Cmd and
// re-reads the view when it returns, so the UI never mutates session or
// device state itself.
//
// Two modals are driven by the view rather than by keys: the conflict
// prompt (resume, end and start new, cancel) is open for as long as the
// session is conflicted, and the start confirmation is open while the
// controller holds a list of non-streaming devices.
//
// Theme and session mode changes are persisted through internal/prefs.
package ui
