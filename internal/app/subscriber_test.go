package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/five82/sessionctl/internal/hub"
)

type flakySubscriber struct {
	mu    sync.Mutex
	calls int
}

// Subscribe fails on the first dial, then pushes one snapshot per connection
// before dropping.
func (s *flakySubscriber) Subscribe(ctx context.Context, fn func(hub.Snapshot)) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == 1 {
		return errors.New("dial refused")
	}
	fn(hub.Snapshot{CurrentSessionID: "live"})
	return errors.New("connection reset")
}

func TestStartSubscriber_ReconnectsAfterDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := newRecordingFeed()
	StartSubscriber(ctx, feed, &flakySubscriber{}, discardLogger())

	// dial failure, then snapshot + drop
	feed.wait(t, 3)
	cancel()

	snaps, failures := feed.counts()
	if snaps < 1 {
		t.Fatalf("snaps = %d, want at least 1", snaps)
	}
	if failures < 2 {
		t.Fatalf("failures = %d, want at least 2", failures)
	}
	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.snaps[0].CurrentSessionID != "live" {
		t.Fatalf("snapshot = %+v", feed.snaps[0])
	}
}

type blockingSubscriber struct{}

func (blockingSubscriber) Subscribe(ctx context.Context, _ func(hub.Snapshot)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartSubscriber_CancelDoesNotReportFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := newRecordingFeed()
	done := make(chan struct{})
	sub := blockingSubscriber{}
	StartSubscriber(ctx, feed, subscriberFunc(func(ctx context.Context, fn func(hub.Snapshot)) error {
		defer close(done)
		return sub.Subscribe(ctx, fn)
	}), discardLogger())

	cancel()
	<-done
	if _, failures := feed.counts(); failures != 0 {
		t.Fatalf("failures = %d, want 0", failures)
	}
}

type subscriberFunc func(ctx context.Context, fn func(hub.Snapshot)) error

func (f subscriberFunc) Subscribe(ctx context.Context, fn func(hub.Snapshot)) error {
	return f(ctx, fn)
}
