package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/five82/sessionctl/internal/hub"
)

const (
	defaultRefreshDelay = time.Second
	defaultCallTimeout  = 10 * time.Second
)

// Stats is one successful read of the hub's buffer counters.
type Stats struct {
	Buffer      hub.BufferStats            `json:"buffer"`
	Uploads     map[string]hub.UploadStats `json:"uploads"`
	SuccessRate float64                    `json:"successRate"`
	FetchedAt   time.Time                  `json:"fetchedAt"`
}

// ResetResult records the outcome of the last ResetFailed call.
type ResetResult struct {
	DeviceID string    `json:"deviceId,omitempty"`
	Count    int       `json:"count"`
	At       time.Time `json:"at"`
}

// Snapshot is the monitor's cached view. A nil Stats means unknown: never
// fetched, or invalidated by Clear.
type Snapshot struct {
	Stats      *Stats       `json:"stats"`
	Refreshing bool         `json:"refreshing"`
	LastError  string       `json:"lastError,omitempty"`
	LastReset  *ResetResult `json:"lastReset,omitempty"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	if s.Stats != nil {
		st := *s.Stats
		st.Uploads = maps.Clone(s.Stats.Uploads)
		s.Stats = &st
	}
	if s.LastReset != nil {
		r := *s.LastReset
		s.LastReset = &r
	}
	return s
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRefreshDelay sets how long after a successful reset the follow-up
// refresh runs.
func WithRefreshDelay(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.refreshDelay = d
		}
	}
}

// WithCallTimeout bounds refreshes the monitor schedules itself.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithOnChange registers fn to run after every change to the cached
// snapshot. fn runs without the monitor's lock held.
func WithOnChange(fn func()) Option {
	return func(m *Monitor) {
		m.onChange = fn
	}
}

// Monitor caches buffer diagnostics read from the hub. Its methods block on
// hub calls and are safe for concurrent use; callers that must not block run
// them in their own goroutine.
type Monitor struct {
	svc          hub.BufferService
	logger       *slog.Logger
	refreshDelay time.Duration
	callTimeout  time.Duration
	onChange     func()

	group singleflight.Group

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	timers map[*time.Timer]struct{}
	closed bool
}

// New builds a Monitor over svc.
func New(svc hub.BufferService, opts ...Option) *Monitor {
	m := &Monitor{
		svc:          svc,
		logger:       slog.Default(),
		refreshDelay: defaultRefreshDelay,
		callTimeout:  defaultCallTimeout,
		timers:       make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "diagnostics")
	return m
}

// Snapshot returns a copy of the cached view.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

// Refresh reads buffer and upload counters concurrently. Overlapping calls
// share one round trip, bounded by the call timeout rather than by any one
// caller's context; a caller that gives up returns its own ctx error. On
// failure the previous stats are kept and the error is recorded.
func (m *Monitor) Refresh(ctx context.Context) (Stats, error) {
	ch := m.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.callTimeout)
		defer cancel()
		return m.fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Stats{}, res.Err
		}
		st := res.Val.(Stats)
		st.Uploads = maps.Clone(st.Uploads)
		return st, nil
	}
}

func (m *Monitor) fetch(ctx context.Context) (Stats, error) {
	var gen uint64
	m.update(func(s *Snapshot) {
		gen = m.gen
		s.Refreshing = true
	})

	var (
		buffer  hub.BufferStats
		uploads map[string]hub.UploadStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := m.svc.BufferStats(gctx)
		if err != nil {
			return fmt.Errorf("buffer stats: %w", err)
		}
		buffer = b
		return nil
	})
	g.Go(func() error {
		u, err := m.svc.UploadStats(gctx)
		if err != nil {
			return fmt.Errorf("upload stats: %w", err)
		}
		uploads = u
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.Warn("refresh failed", "error", err)
		m.update(func(s *Snapshot) {
			s.Refreshing = false
			s.LastError = err.Error()
		})
		return Stats{}, err
	}

	stats := Stats{
		Buffer:      buffer,
		Uploads:     uploads,
		SuccessRate: hub.SuccessRate(uploads),
		FetchedAt:   time.Now(),
	}
	m.update(func(s *Snapshot) {
		s.Refreshing = false
		s.LastError = ""
		// A Clear issued mid-flight wins over counters read before it.
		if m.gen == gen {
			cp := stats
			cp.Uploads = maps.Clone(uploads)
			s.Stats = &cp
		}
	})
	return stats, nil
}

// ResetFailed re-queues failed packets for deviceID, or for every device when
// deviceID is empty, and schedules a refresh once the hub has had time to
// retry the uploads.
func (m *Monitor) ResetFailed(ctx context.Context, deviceID string) (int, error) {
	count, err := m.svc.ResetFailedPackets(ctx, deviceID)
	if err != nil {
		err = fmt.Errorf("reset failed packets: %w", err)
		m.update(func(s *Snapshot) { s.LastError = err.Error() })
		return 0, err
	}
	m.logger.Info("failed packets reset", "device_id", deviceID, "count", count)
	m.update(func(s *Snapshot) {
		s.LastError = ""
		s.LastReset = &ResetResult{DeviceID: deviceID, Count: count, At: time.Now()}
	})
	m.scheduleRefresh()
	return count, nil
}

// Clear drops the hub's buffer. Cached stats become unknown before the call
// is issued and stay unknown until the next refresh, even if the call fails.
func (m *Monitor) Clear(ctx context.Context) error {
	m.update(func(s *Snapshot) {
		m.gen++
		s.Stats = nil
	})
	if err := m.svc.ClearBuffer(ctx); err != nil {
		err = fmt.Errorf("clear buffer: %w", err)
		m.update(func(s *Snapshot) { s.LastError = err.Error() })
		return err
	}
	m.logger.Info("buffer cleared")
	m.update(func(s *Snapshot) { s.LastError = "" })
	return nil
}

// Close cancels scheduled refreshes.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for t := range m.timers {
		t.Stop()
	}
	clear(m.timers)
}

func (m *Monitor) scheduleRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(m.refreshDelay, func() {
		m.mu.Lock()
		delete(m.timers, t)
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		defer cancel()
		if _, err := m.Refresh(ctx); err != nil {
			m.logger.Debug("scheduled refresh failed", "error", err)
		}
	})
	m.timers[t] = struct{}{}
}

func (m *Monitor) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snap)
	m.mu.Unlock()
	if m.onChange != nil {
		m.onChange()
	}
}
