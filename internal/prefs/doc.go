// Package prefs persists user preferences (theme and session mode) in
// ~/.config/sessionctl/prefs.toml. Unreadable or malformed files fall back to
// defaults rather than failing startup.
package prefs
