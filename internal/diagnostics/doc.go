// Package diagnostics caches the hub's upload buffer counters.
//
// Monitor.Refresh reads aggregate buffer stats and per-device upload stats in
// parallel and caches the result; overlapping refreshes share one round trip.
// ResetFailed re-queues failed packets and schedules a follow-up refresh a
// short delay later, since the hub retries those uploads on its own. Clear
// marks the cached stats unknown before asking the hub to drop its buffer.
//
// Failures are recorded in the snapshot's LastError and never touch session
// state.
package diagnostics
