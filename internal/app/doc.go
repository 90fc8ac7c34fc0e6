// Package app is the composition root for sessionctl.
//
// Run loads configuration and preferences, opens the JSON log, builds the hub
// client and the controller, and starts three things under one errgroup:
//
//   - the controller event loop,
//   - a snapshot feed, either StartPoller (fixed interval, exponential
//     backoff while the hub is unreachable) or StartSubscriber (websocket
//     push with reconnect),
//   - the consumer: the TUI, or the HTTP control surface when headless.
//
// The consumer owns the lifetime. When it returns, the shared context is
// cancelled and the other goroutines wind down.
//
// Feed errors are never fatal. Each failed read is reported to the
// controller, which marks the hub offline after two in a row, and polling
// continues.
package app
