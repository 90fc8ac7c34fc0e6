// Package logtail reads the tail of sessionctl's structured log.
//
// # Reading
//
// Read returns the last N lines of a file using a ring buffer of N entries,
// so memory stays O(N) regardless of file size. A missing file yields no lines
// and no error; the log view simply shows nothing until the first record is
// written.
//
// # Parsing
//
// The controller logs through log/slog's JSON handler. Parse turns one line
// into an Entry with the standard time, level and msg keys split out, the
// component attribute lifted, and every other attribute rendered as a sorted
// key/value list. Lines that are not JSON (a stray panic trace, say) come back
// as a message-only Entry rather than an error.
//
//	entries, err := logtail.Tail(cfg.LogPath(), 400)
package logtail
