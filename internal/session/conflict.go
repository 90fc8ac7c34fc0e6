package session

import (
	"errors"
	"time"

	"github.com/five82/sessionctl/internal/hub"
)

// Conflict identifies a session that already held the global slot when a
// local start was attempted.
type Conflict struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	// observed is set when the descriptor came from a snapshot rather than
	// from the start call, so a later snapshot may withdraw it.
	observed bool
}

// Conflict returns the descriptor awaiting a decision. It stays present
// while a resume or replace is pending and is dropped once a session is
// adopted or the attempt is cancelled.
func (m *Machine) Conflict() (Conflict, bool) {
	if m.conflict == nil || m.session != nil {
		return Conflict{}, false
	}
	return *m.conflict, true
}

func (m *Machine) enterConflict(id string, startedAt *time.Time, observed bool) {
	c := &Conflict{SessionID: id, observed: observed}
	if startedAt != nil {
		c.StartedAt = *startedAt
	}
	if prev := m.conflict; prev != nil && prev.SessionID == id {
		c.observed = c.observed || prev.observed
		if c.StartedAt.IsZero() {
			c.StartedAt = prev.StartedAt
		}
	}
	m.conflict = c
	m.phase = Conflicted
	m.busy = false
	m.stalled = false
	m.attempt = EffectNone
	m.status = ""
}

// resolvable reports the guard for Resume, Replace and CancelConflict. A
// second decision while the first is outstanding is rejected rather than
// queued; once a hub error releases it, the user may decide again.
func (m *Machine) resolvable() error {
	switch {
	case m.busy:
		return ErrBusy
	case m.conflict == nil || m.session != nil:
		return ErrNotConflicted
	case m.phase == Starting && !m.stalled:
		return ErrBusy
	}
	return nil
}

// Resume adopts the conflicting session. The machine waits in Starting until
// a snapshot reports that session's id.
func (m *Machine) Resume() (Effect, error) {
	if err := m.resolvable(); err != nil {
		return Effect{}, err
	}
	m.lastErr = ""
	return m.begin(Starting, EffectResumeConflict, "Resuming session..."), nil
}

// Replace ends the conflicting session and starts a new one. Both steps run
// on the hub; the outcome is only visible as the next reported session id.
func (m *Machine) Replace() (Effect, error) {
	if err := m.resolvable(); err != nil {
		return Effect{}, err
	}
	m.lastErr = ""
	return m.begin(Starting, EffectReplaceConflict, "Ending existing & starting new..."), nil
}

// CancelConflict abandons the local start attempt without any external call.
func (m *Machine) CancelConflict() error {
	if err := m.resolvable(); err != nil {
		return err
	}
	m.conflict = nil
	m.phase = Idle
	m.stalled = false
	m.attempt = EffectNone
	m.status = ""
	m.epoch++
	return nil
}

func (m *Machine) completeResolution(eff Effect, err error) {
	if eff.Epoch != m.epoch || m.phase != Starting {
		return
	}
	m.busy = false
	if err == nil {
		return
	}
	m.status = ""
	m.lastErr = err.Error()
	m.attempt = EffectNone
	m.stalled = false
	if m.conflict != nil {
		m.phase = Conflicted
		return
	}
	m.phase = Idle
}

func asConflict(err error) (*hub.Disposition, bool) {
	var disp *hub.Disposition
	if errors.As(err, &disp) && disp.Kind == hub.DispositionConflict {
		return disp, true
	}
	return nil, false
}
