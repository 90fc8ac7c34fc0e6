package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
	"github.com/five82/sessionctl/internal/session"
)

// apply runs a machine intent on the loop, logs the transition and issues
// the returned effect.
func (c *Controller) apply(ctx context.Context, name string, fn func() (session.Effect, error)) error {
	return c.submit(ctx, name, func() error {
		from := c.machine.Phase()
		eff, err := fn()
		if err != nil {
			return err
		}
		c.logTransition(name, session.Transition{From: from, To: c.machine.Phase()})
		c.exec(eff)
		return nil
	})
}

// RequestStart asks for a new session with the eligible included devices.
// Unless override is set, a *session.ConfirmationRequiredError is returned
// when any of them is not streaming.
func (c *Controller) RequestStart(ctx context.Context, override bool) error {
	return c.apply(ctx, "start", func() (session.Effect, error) {
		return c.machine.RequestStart(c.reg.Candidates(), override)
	})
}

// ResumeConflict adopts the session that blocked the last start.
func (c *Controller) ResumeConflict(ctx context.Context) error {
	return c.apply(ctx, "resume", c.machine.Resume)
}

// ReplaceConflict ends the blocking session and starts a new one.
func (c *Controller) ReplaceConflict(ctx context.Context) error {
	return c.apply(ctx, "replace", c.machine.Replace)
}

// CancelConflict abandons the start attempt. Nothing is sent to the hub.
func (c *Controller) CancelConflict(ctx context.Context) error {
	return c.apply(ctx, "cancel", func() (session.Effect, error) {
		return session.Effect{}, c.machine.CancelConflict()
	})
}

// EndSession ends the active session.
func (c *Controller) EndSession(ctx context.Context) error {
	return c.apply(ctx, "end", c.machine.End)
}

// AbortStart gives up on a pending start and stops streaming everywhere.
// Aborting a pending resume or replace also drops the hub's conflict record.
func (c *Controller) AbortStart(ctx context.Context) error {
	return c.apply(ctx, "abort", func() (session.Effect, error) {
		_, hadConflict := c.machine.Conflict()
		eff, err := c.machine.Abort()
		if err == nil && hadConflict {
			c.fire("cancel_conflict", c.hub.CancelPendingConflict, nil)
		}
		return eff, err
	})
}

// CheckForActiveSession asks the hub to look for a session started elsewhere.
func (c *Controller) CheckForActiveSession(ctx context.Context) error {
	return c.apply(ctx, "check", c.machine.CheckForActive)
}

// ClearError drops the session error and the last intent failure notice.
func (c *Controller) ClearError(ctx context.Context) error {
	return c.submit(ctx, "clear_error", func() error {
		c.machine.ClearError()
		c.notice = ""
		return nil
	})
}

// DismissConfirmation drops a pending start confirmation.
func (c *Controller) DismissConfirmation(ctx context.Context) error {
	return c.submit(ctx, "dismiss_confirmation", func() error {
		c.machine.DismissConfirmation()
		return nil
	})
}

// SetIncluded marks a device for the next session. Membership is locked
// while a session exists.
func (c *Controller) SetIncluded(ctx context.Context, deviceID string, included bool) error {
	return c.submit(ctx, "set_included", func() error {
		if c.machine.Locked() {
			return session.ErrSessionLocked
		}
		return c.reg.SetIncluded(deviceID, included)
	})
}

// ToggleIncluded flips a device's inclusion flag.
func (c *Controller) ToggleIncluded(ctx context.Context, deviceID string) error {
	return c.submit(ctx, "toggle_included", func() error {
		if c.machine.Locked() {
			return session.ErrSessionLocked
		}
		d, ok := c.reg.Get(deviceID)
		if !ok {
			return registry.ErrUnknownDevice
		}
		return c.reg.SetIncluded(deviceID, !d.Included)
	})
}

// SetAutoStream updates the registry at once and reverts it if the hub
// rejects the change.
func (c *Controller) SetAutoStream(ctx context.Context, deviceID string, enabled bool) error {
	return c.submit(ctx, "set_auto_stream", func() error {
		return c.setAutoStream(deviceID, enabled)
	})
}

// ToggleAutoStream flips a device's auto-stream preference.
func (c *Controller) ToggleAutoStream(ctx context.Context, deviceID string) error {
	return c.submit(ctx, "toggle_auto_stream", func() error {
		d, ok := c.reg.Get(deviceID)
		if !ok {
			return registry.ErrUnknownDevice
		}
		return c.setAutoStream(deviceID, !d.AutoStream)
	})
}

func (c *Controller) setAutoStream(deviceID string, enabled bool) error {
	if err := c.reg.SetAutoStream(deviceID, enabled); err != nil {
		return err
	}
	c.fire("set_auto_stream", func(ctx context.Context) error {
		return c.hub.SetAutoStream(ctx, deviceID, enabled)
	}, func(error) {
		_ = c.reg.SetAutoStream(deviceID, !enabled)
	})
	return nil
}

// ToggleStreaming stops a device that is streaming or starting and starts
// any other.
func (c *Controller) ToggleStreaming(ctx context.Context, deviceID string) error {
	return c.submit(ctx, "toggle_streaming", func() error {
		d, ok := c.reg.Get(deviceID)
		if !ok {
			return registry.ErrUnknownDevice
		}
		if d.Stream.Active() {
			c.fire("stop_streaming", func(ctx context.Context) error {
				return c.hub.StopStreaming(ctx, deviceID)
			}, nil)
			return nil
		}
		c.fire("start_streaming", func(ctx context.Context) error {
			return c.hub.StartStreaming(ctx, deviceID)
		}, nil)
		return nil
	})
}

// StartStreaming starts one device, or all when deviceID is empty.
func (c *Controller) StartStreaming(ctx context.Context, deviceID string) error {
	return c.transport(ctx, "start_streaming", func(ctx context.Context) error {
		return c.hub.StartStreaming(ctx, deviceID)
	})
}

// StopStreaming stops one device, or all when deviceID is empty.
func (c *Controller) StopStreaming(ctx context.Context, deviceID string) error {
	return c.transport(ctx, "stop_streaming", func(ctx context.Context) error {
		return c.hub.StopStreaming(ctx, deviceID)
	})
}

// Connect asks the hub to connect a known device.
func (c *Controller) Connect(ctx context.Context, deviceID string) error {
	return c.deviceTransport(ctx, "connect", deviceID, c.hub.Connect)
}

// Disconnect asks the hub to drop a known device.
func (c *Controller) Disconnect(ctx context.Context, deviceID string) error {
	return c.deviceTransport(ctx, "disconnect", deviceID, c.hub.Disconnect)
}

// DisconnectAll drops every device.
func (c *Controller) DisconnectAll(ctx context.Context) error {
	return c.transport(ctx, "disconnect_all", c.hub.DisconnectAll)
}

// DeviceOperations lists the device-specific commands the hub offers for
// deviceID in its current stream state. The hub call runs on the caller's
// goroutine.
func (c *Controller) DeviceOperations(ctx context.Context, deviceID string) ([]hub.Operation, error) {
	var stream hub.StreamState
	err := c.submit(ctx, "device_operations", func() error {
		d, ok := c.reg.Get(deviceID)
		if !ok {
			return registry.ErrUnknownDevice
		}
		stream = d.Stream
		return nil
	})
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	all, err := c.hub.DeviceOperations(callCtx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list operations for %s: %w", deviceID, err)
	}
	ops := make([]hub.Operation, 0, len(all))
	for _, op := range all {
		if op.Offered(stream) {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// ExecuteOperation runs a named device operation. Failures surface through
// the log and the notice line.
func (c *Controller) ExecuteOperation(ctx context.Context, deviceID, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrUnknownOperation
	}
	return c.deviceTransport(ctx, "operation "+name, deviceID, func(ctx context.Context, id string) error {
		return c.hub.ExecuteOperation(ctx, id, name)
	})
}

func (c *Controller) transport(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.submit(ctx, name, func() error {
		c.fire(name, fn, nil)
		return nil
	})
}

func (c *Controller) deviceTransport(ctx context.Context, name, deviceID string, fn func(context.Context, string) error) error {
	return c.submit(ctx, name, func() error {
		if _, ok := c.reg.Get(deviceID); !ok {
			return registry.ErrUnknownDevice
		}
		c.fire(name, func(ctx context.Context) error { return fn(ctx, deviceID) }, nil)
		return nil
	})
}

// ToggleScan starts discovery, or stops it when running. A scan stops on its
// own after the scan timeout.
func (c *Controller) ToggleScan(ctx context.Context) error {
	return c.submit(ctx, "toggle_scan", func() error {
		if c.scanning {
			c.stopScan()
			return nil
		}
		c.startScan()
		return nil
	})
}

func (c *Controller) startScan() {
	c.scanning = true
	c.scanGen++
	gen := c.scanGen
	c.stopScanTimer()
	c.scanTimer = time.AfterFunc(c.scanTimeout, func() {
		c.post(scanTimeoutEvent{gen: gen})
	})
	c.logger.Info("scan started", "timeout", c.scanTimeout)
	c.fire("start_scan", c.hub.StartScan, func(error) {
		if c.scanGen == gen {
			c.scanning = false
			c.stopScanTimer()
		}
	})
}

func (c *Controller) stopScan() {
	c.scanning = false
	c.scanGen++
	c.stopScanTimer()
	c.logger.Info("scan stopped")
	c.fire("stop_scan", c.hub.StopScan, nil)
}

func (c *Controller) stopScanTimer() {
	if c.scanTimer != nil {
		c.scanTimer.Stop()
		c.scanTimer = nil
	}
}

// ResetDevices stops streaming, disconnects everything, forgets every known
// device and restarts discovery. An adopted session is kept until a snapshot
// drops it.
func (c *Controller) ResetDevices(ctx context.Context) error {
	return c.submit(ctx, "reset_devices", func() error {
		_, wasConflicted := c.machine.Conflict()
		c.fire("stop_streaming", func(ctx context.Context) error {
			return c.hub.StopStreaming(ctx, "")
		}, nil)
		c.fire("disconnect_all", c.hub.DisconnectAll, nil)
		if wasConflicted {
			c.fire("cancel_conflict", c.hub.CancelPendingConflict, nil)
		}
		c.reg.Reset()
		c.notice = ""
		c.logTransition("reset_devices", c.machine.Reset())
		c.logger.Info("devices reset")
		if !c.scanning {
			c.startScan()
		}
		return nil
	})
}

// SetSessionMode toggles whether the hub groups streams into sessions.
func (c *Controller) SetSessionMode(ctx context.Context, enabled bool) error {
	return c.submit(ctx, "set_session_mode", func() error {
		prev := c.sessionMode
		c.sessionMode = enabled
		c.fire("set_session_mode", func(ctx context.Context) error {
			return c.hub.SetSessionMode(ctx, enabled)
		}, func(error) {
			c.sessionMode = prev
		})
		return nil
	})
}

// RefreshBuffer reads buffer diagnostics. It runs on the caller's goroutine
// and never blocks the event loop.
func (c *Controller) RefreshBuffer(ctx context.Context) (diagnostics.Stats, error) {
	return c.monitor.Refresh(ctx)
}

// ResetFailedPackets re-queues failed uploads for deviceID, or for all
// devices when it is empty.
func (c *Controller) ResetFailedPackets(ctx context.Context, deviceID string) (int, error) {
	return c.monitor.ResetFailed(ctx, deviceID)
}

// ClearBuffer drops the hub's upload buffer.
func (c *Controller) ClearBuffer(ctx context.Context) error {
	return c.monitor.Clear(ctx)
}
