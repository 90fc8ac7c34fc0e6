// Package session implements the lifecycle of the single global recording
// session and the conflict protocol that runs when a start collides with a
// session that already exists.
//
// # States
//
//	Idle ──requestStart──> Starting ──snapshot: id──> Active
//	                          │                         │
//	                 conflict │                   End() │
//	                          v                         v
//	                     Conflicted                  Ending ──snapshot: no id──> Idle
//	                   resume/replace → Starting
//	                   cancel         → Idle
//
// # Authority
//
// A Machine never invents a session id. Call completions only clear the busy
// flag (or report a failure); Active is entered when a snapshot reports a new
// id and left when a snapshot reports none. A snapshot that carries both a new
// session id and a conflict id resolves to Active, and conflict ids are
// ignored unless a start attempt is pending.
//
// # Effects
//
// Intent methods never perform I/O. They return an Effect naming the hub call
// to issue; the caller runs it and feeds the outcome back through Complete.
// Each attempt carries an epoch, so the late result of an aborted or
// superseded attempt is dropped.
//
// # Errors
//
// Guard failures are sentinel errors (ErrBusy, ErrSessionActive, and so on)
// and leave the machine untouched. A start request with included devices
// that are not streaming returns *ConfirmationRequiredError; repeating it
// with override set proceeds. Failed calls and snapshot-reported session
// errors surface through LastError and never force a transition by
// themselves.
package session
