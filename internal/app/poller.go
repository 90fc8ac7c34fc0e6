package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/sessionctl/internal/hub"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	maxBackoff          = 30 * time.Second
)

// Feed receives snapshot reads in order. The controller implements it.
type Feed interface {
	Observe(ctx context.Context, snap hub.Snapshot) error
	PollFailed(ctx context.Context, err error) error
}

// StartPoller launches a background goroutine that reads the hub snapshot at
// a fixed cadence and hands each result to feed. Consecutive failures back
// off exponentially. It returns immediately.
func StartPoller(ctx context.Context, feed Feed, reader hub.SnapshotReader, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		timer := time.NewTimer(0)
		defer timer.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			err := poll(ctx, feed, reader)
			switch {
			case err == nil:
				if failures > 0 {
					logger.Info("hub reachable again", "failures", failures)
				}
				failures = 0
			case ctx.Err() != nil:
				return
			case errors.Is(err, errFeedClosed):
				logger.Debug("feed closed, poller exiting")
				return
			default:
				failures++
				logger.Warn("snapshot poll failed",
					"error", err,
					"failures", failures,
					"next_in", calculateBackoff(failures, interval),
				)
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

var errFeedClosed = errors.New("feed closed")

// poll performs one read. A nil return means the snapshot reached the feed.
func poll(ctx context.Context, feed Feed, reader hub.SnapshotReader) error {
	snap, err := reader.FetchSnapshot(ctx)
	if err != nil {
		if ferr := feed.PollFailed(ctx, err); ferr != nil {
			return errors.Join(errFeedClosed, ferr)
		}
		return err
	}
	if err := feed.Observe(ctx, *snap); err != nil {
		return errors.Join(errFeedClosed, err)
	}
	return nil
}

// calculateBackoff returns base doubled once per consecutive failure, capped
// at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
