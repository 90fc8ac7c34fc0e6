// Package controller runs the session orchestration loop.
//
// # Overview
//
// A Controller owns the device registry and the session machine and mutates
// them from exactly one goroutine, the one running Run. Everything else talks
// to it through events on a single channel:
//
//	snapshot feed ──Observe──┐
//	TUI / API    ──intents───┼──> events ──> Run loop ──> state.Store.Publish
//	hub calls    ──results───┘
//
// Because intents and snapshot ticks share the channel, an intent is never
// applied in the middle of a merge, and snapshots are applied in the order
// they were read.
//
// # Intents
//
// Intent methods (RequestStart, ResumeConflict, EndSession, ToggleIncluded,
// ...) block until the loop has applied them and return guard failures
// synchronously. Hub calls are never made on the loop: the machine returns an
// effect, the controller issues it on its own goroutine, and the result comes
// back as another event. A successful call only clears the busy flag; the
// session becomes Active or Idle when a snapshot says so.
//
// Device transport intents (scan, connect, streaming, auto-stream) are
// fire-and-forget. Failures are logged and surfaced as View.Notice, and the
// optimistic auto-stream flip is reverted.
//
// # Buffer diagnostics
//
// RefreshBuffer, ResetFailedPackets and ClearBuffer run on the caller's
// goroutine against a diagnostics.Monitor; the monitor wakes the loop to
// republish when its cache changes.
package controller
