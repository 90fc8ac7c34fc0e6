// Package api exposes the controller over a small JSON HTTP surface for
// headless operation. Every mutating route answers 202 with the resulting
// view, 409 when a guard rejects the intent, and 404 for unknown devices.
package api
