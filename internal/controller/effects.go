package controller

import (
	"context"
	"fmt"

	"github.com/five82/sessionctl/internal/session"
)

// exec issues the hub call for eff off the loop and feeds the outcome back
// as a completion event.
func (c *Controller) exec(eff session.Effect) {
	if eff.Kind == session.EffectNone {
		return
	}
	c.logger.Debug("issuing call", "call", eff.Kind, "epoch", eff.Epoch)
	go func() {
		ctx, cancel := context.WithTimeout(c.runCtx, c.callTimeout)
		defer cancel()
		err := c.call(ctx, eff)
		c.post(completionEvent{eff: eff, err: err})
	}()
}

func (c *Controller) call(ctx context.Context, eff session.Effect) error {
	switch eff.Kind {
	case session.EffectStartSession:
		return c.hub.StartSession(ctx, eff.Initiator)
	case session.EffectResumeConflict:
		return c.hub.ResumeConflictingSession(ctx)
	case session.EffectReplaceConflict:
		return c.hub.EndConflictingAndStartNew(ctx)
	case session.EffectEndSession:
		return c.hub.EndActiveSession(ctx)
	case session.EffectStopStreaming:
		return c.hub.StopStreaming(ctx, "")
	case session.EffectCheckSession:
		return c.hub.CheckForActiveSession(ctx)
	default:
		return fmt.Errorf("unknown effect %v", eff.Kind)
	}
}

func (c *Controller) complete(eff session.Effect, err error) {
	if err != nil {
		c.logger.Warn("call failed", "call", eff.Kind, "epoch", eff.Epoch, "error", err)
	} else {
		c.logger.Debug("call completed", "call", eff.Kind, "epoch", eff.Epoch)
	}
	c.logTransition(eff.Kind.String(), c.machine.Complete(eff, err))
}

// fire issues a fire-and-forget hub call. onErr, when set, runs on the loop
// after a failure.
func (c *Controller) fire(name string, fn func(context.Context) error, onErr func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(c.runCtx, c.callTimeout)
		defer cancel()
		err := fn(ctx)
		if err == nil {
			c.logger.Debug("call completed", "call", name)
			return
		}
		if c.runCtx.Err() != nil {
			return
		}
		c.logger.Warn("call failed", "call", name, "error", err)
		c.post(loopEvent{fn: func() {
			c.notice = fmt.Sprintf("%s failed: %v", name, err)
			if onErr != nil {
				onErr(err)
			}
		}})
	}()
}
