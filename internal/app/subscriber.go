package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/sessionctl/internal/hub"
)

const reconnectBase = 500 * time.Millisecond

// StartSubscriber launches a background goroutine that keeps a push
// subscription open and forwards every pushed snapshot to feed. Dropped
// connections count as failed reads and reconnect with backoff. It returns
// immediately.
func StartSubscriber(ctx context.Context, feed Feed, sub hub.Subscriber, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		failures := 0
		for {
			received := false
			err := sub.Subscribe(ctx, func(snap hub.Snapshot) {
				if !received {
					received = true
					if failures > 0 {
						logger.Info("push subscription restored", "failures", failures)
					}
					failures = 0
				}
				_ = feed.Observe(ctx, snap)
			})
			if ctx.Err() != nil {
				return
			}

			failures++
			if ferr := feed.PollFailed(ctx, err); ferr != nil {
				return
			}
			wait := calculateBackoff(failures, reconnectBase)
			logger.Warn("push subscription dropped",
				"error", err,
				"failures", failures,
				"retry_in", wait,
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}
