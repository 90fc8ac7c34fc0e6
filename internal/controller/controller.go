package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
	"github.com/five82/sessionctl/internal/session"
	"github.com/five82/sessionctl/internal/state"
)

// ErrStopped is returned by intents issued after Run has returned.
var ErrStopped = errors.New("controller stopped")

// ErrUnknownOperation is returned when a device operation has no name.
var ErrUnknownOperation = errors.New("unknown device operation")

const (
	defaultCallTimeout = 10 * time.Second
	defaultScanTimeout = 60 * time.Second
)

// Options configures a Controller.
type Options struct {
	// Initiator is the identity sessions are started for. Empty disables
	// starting sessions.
	Initiator    string
	CallTimeout  time.Duration
	ScanTimeout  time.Duration
	RefreshDelay time.Duration
	// SessionMode is pushed to the hub when Run starts.
	SessionMode bool
	Logger      *slog.Logger
	Now         func() time.Time
}

// Controller owns the device registry and the session machine. Every
// snapshot and every intent is applied by the goroutine running Run, one
// event at a time; other goroutines only enqueue events and read the
// published state.View.
type Controller struct {
	hub         hub.Hub
	store       *state.Store
	monitor     *diagnostics.Monitor
	logger      *slog.Logger
	callTimeout time.Duration
	scanTimeout time.Duration

	events chan event
	wake   chan struct{}
	done   chan struct{}

	// Owned by the Run goroutine.
	runCtx      context.Context
	reg         *registry.Registry
	machine     *session.Machine
	scanning    bool
	scanGen     uint64
	scanTimer   *time.Timer
	sessionMode bool
	notice      string
}

// New builds a Controller publishing into store.
func New(h hub.Hub, store *state.Store, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		hub:         h,
		store:       store,
		logger:      logger.With("component", "controller"),
		callTimeout: opts.CallTimeout,
		scanTimeout: opts.ScanTimeout,
		events:      make(chan event),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		reg:         registry.New(),
		machine:     session.New(opts.Initiator, opts.Now),
		sessionMode: opts.SessionMode,
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}
	if c.scanTimeout <= 0 {
		c.scanTimeout = defaultScanTimeout
	}
	c.monitor = diagnostics.New(h,
		diagnostics.WithLogger(logger),
		diagnostics.WithRefreshDelay(opts.RefreshDelay),
		diagnostics.WithCallTimeout(c.callTimeout),
		diagnostics.WithOnChange(c.wakeup),
	)
	return c
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.monitor.Close()
	defer c.stopScanTimer()

	c.runCtx = ctx
	c.logger.Info("controller started", "initiator", c.machine.Initiator(), "session_mode", c.sessionMode)
	c.fire("set_session_mode", func(ctx context.Context) error {
		return c.hub.SetSessionMode(ctx, c.sessionMode)
	}, nil)
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopped")
			return ctx.Err()
		case <-c.wake:
			c.publish()
		case ev := <-c.events:
			err := c.handle(ev)
			c.publish()
			if in, ok := ev.(intentEvent); ok {
				in.reply <- err
			}
		}
	}
}

// View returns the latest published state.
func (c *Controller) View() state.View {
	return c.store.Snapshot()
}

// Observe enqueues one snapshot read. Snapshots are applied in the order
// they are enqueued.
func (c *Controller) Observe(ctx context.Context, snap hub.Snapshot) error {
	return c.enqueue(ctx, snapshotEvent{snap: snap})
}

// PollFailed records a failed snapshot read.
func (c *Controller) PollFailed(ctx context.Context, err error) error {
	return c.enqueue(ctx, pollErrorEvent{err: err})
}

type event interface{ isEvent() }

type snapshotEvent struct{ snap hub.Snapshot }

type pollErrorEvent struct{ err error }

type intentEvent struct {
	name  string
	fn    func() error
	reply chan error
}

type completionEvent struct {
	eff session.Effect
	err error
}

// loopEvent runs fn on the loop; used for call failures that revert local
// optimistic changes.
type loopEvent struct{ fn func() }

type scanTimeoutEvent struct{ gen uint64 }

func (snapshotEvent) isEvent()    {}
func (pollErrorEvent) isEvent()   {}
func (intentEvent) isEvent()      {}
func (completionEvent) isEvent()  {}
func (loopEvent) isEvent()        {}
func (scanTimeoutEvent) isEvent() {}

func (c *Controller) handle(ev event) error {
	switch ev := ev.(type) {
	case snapshotEvent:
		c.reg.Merge(ev.snap)
		obs := session.ObservationFrom(ev.snap, ids(c.reg.Candidates()))
		c.logTransition("snapshot", c.machine.Observe(obs))
		c.store.RecordPoll(nil)
	case pollErrorEvent:
		c.logger.Warn("snapshot read failed", "error", ev.err)
		c.store.RecordPoll(ev.err)
	case intentEvent:
		err := ev.fn()
		if err != nil {
			c.logRejected(ev.name, err)
		}
		return err
	case completionEvent:
		c.complete(ev.eff, ev.err)
	case loopEvent:
		ev.fn()
	case scanTimeoutEvent:
		if ev.gen == c.scanGen && c.scanning {
			c.logger.Info("scan timed out", "after", c.scanTimeout)
			c.stopScan()
		}
	}
	return nil
}

func (c *Controller) enqueue(ctx context.Context, ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues from goroutines the controller started itself.
func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) submit(ctx context.Context, name string, fn func() error) error {
	reply := make(chan error, 1)
	if err := c.enqueue(ctx, intentEvent{name: name, fn: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) wakeup() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) publish() {
	m := c.machine
	sess := state.Session{
		Phase:     m.Phase(),
		Busy:      m.Busy(),
		Status:    m.Status(),
		LastError: m.LastError(),
		Confirm:   m.PendingConfirmation(),
		CanStart:  m.CanStart(c.reg.Candidates()),
		Initiator: m.Initiator(),
		Mode:      c.sessionMode,
	}
	if s, ok := m.Session(); ok {
		started := s.StartedAt
		sess.ID = s.ID
		sess.StartedAt = &started
		sess.Devices = s.Devices
		sess.Participants = s.Participants
	}
	if cf, ok := m.Conflict(); ok {
		sess.Conflict = &cf
	}

	devices := c.reg.Devices()
	out := make([]state.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, state.Device{
			ID:         d.ID,
			Name:       d.Name,
			Connection: d.Connection,
			Stream:     d.Stream,
			Battery:    d.Battery,
			AutoStream: d.AutoStream,
			Included:   d.Included,
			Eligible:   d.Eligible(),
		})
	}

	c.store.Publish(state.View{
		Devices:  out,
		Session:  sess,
		Buffer:   c.monitor.Snapshot(),
		Scanning: c.scanning,
		Notice:   c.notice,
	})
}

func (c *Controller) logTransition(cause string, tr session.Transition) {
	if !tr.Changed() {
		return
	}
	attrs := []any{"from", tr.From, "to", tr.To, "cause", cause}
	if s, ok := c.machine.Session(); ok {
		attrs = append(attrs, "session_id", s.ID)
	}
	if cf, ok := c.machine.Conflict(); ok {
		attrs = append(attrs, "conflict_id", cf.SessionID)
	}
	c.logger.Info("session transition", attrs...)
}

func (c *Controller) logRejected(intent string, err error) {
	var confirm *session.ConfirmationRequiredError
	if errors.As(err, &confirm) {
		c.logger.Info("start needs confirmation", "devices", confirm.Devices)
		return
	}
	c.logger.Info("intent rejected", "intent", intent, "reason", err)
}

func ids(devices []registry.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.ID)
	}
	return out
}
