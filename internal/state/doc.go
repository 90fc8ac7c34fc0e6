// Package state provides thread-safe sharing of controller state with
// presentation code.
//
// # Overview
//
// The controller loop is the single writer. After every event it builds a
// View (devices, session lifecycle, conflict, buffer diagnostics) and
// publishes it; the TUI and the HTTP API read copies on their own schedule.
//
//	Controller loop:               Readers (TUI, API):
//	┌──────────────────┐           ┌──────────────────┐
//	│ merge snapshot   │           │                  │
//	│ observe session  │           │                  │
//	│ store.Publish()  │──────────→│ store.Snapshot() │
//	│ store.RecordPoll │  (mutex)  │ render / encode  │
//	└──────────────────┘           └──────────────────┘
//
// # Update Semantics
//
// Publish replaces the controller state but keeps poll health. RecordPoll
// tracks hub reachability:
//
//	store.RecordPoll(nil)  → LastError = nil, ConsecutiveFailures = 0
//	store.RecordPoll(err)  → data kept, LastError = err, failures++
//
// IsOffline reports two or more consecutive failures, so a single dropped
// poll does not flash an offline banner.
//
// # Defensive Copying
//
// Publish and Snapshot both deep-copy slices, maps and pointers, so readers
// can never observe a registry merge half-way through or mutate what the
// controller holds.
//
// The zero Store is ready to use.
package state
