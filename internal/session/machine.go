package session

import (
	"time"

	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
)

// EffectKind names an external call the controller must issue on behalf of
// the machine.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectStartSession
	EffectResumeConflict
	EffectReplaceConflict
	EffectEndSession
	EffectStopStreaming
	EffectCheckSession
)

var effectNames = map[EffectKind]string{
	EffectNone:            "none",
	EffectStartSession:    "start_session",
	EffectResumeConflict:  "resume_conflicting",
	EffectReplaceConflict: "replace_conflicting",
	EffectEndSession:      "end_session",
	EffectStopStreaming:   "stop_streaming",
	EffectCheckSession:    "check_session",
}

func (k EffectKind) String() string {
	if s, ok := effectNames[k]; ok {
		return s
	}
	return "unknown"
}

// Effect is an external call to issue. Epoch ties its completion back to the
// attempt that produced it so late results of abandoned attempts are dropped.
type Effect struct {
	Kind      EffectKind
	Initiator string
	Epoch     uint64
}

// Session is the active session as first reported by the hub. Participants
// and Devices are frozen when the session is adopted.
type Session struct {
	ID           string
	StartedAt    time.Time
	Devices      []hub.SessionDevice
	Participants []string
}

func (s Session) clone() Session {
	s.Devices = append([]hub.SessionDevice(nil), s.Devices...)
	s.Participants = append([]string(nil), s.Participants...)
	return s
}

// Observation is the session-relevant part of one snapshot tick.
// Participants lists the ids of eligible, included devices at this tick and
// is only read when a new session is adopted.
type Observation struct {
	SessionID         string
	SessionDevices    []hub.SessionDevice
	ConflictID        string
	ConflictStartedAt *time.Time
	Error             string
	Participants      []string
}

// ObservationFrom extracts the session fields of a snapshot.
func ObservationFrom(snap hub.Snapshot, participants []string) Observation {
	return Observation{
		SessionID:         snap.CurrentSessionID,
		SessionDevices:    snap.SessionDevices,
		ConflictID:        snap.ConflictingSessionID,
		ConflictStartedAt: snap.ConflictingSessionStartedAt,
		Error:             snap.SessionError,
		Participants:      participants,
	}
}

// Machine arbitrates session intents against hub snapshots. It never invents
// a session id: Active is entered only when a snapshot reports one, and left
// only when a snapshot reports none. A Machine is not safe for concurrent use.
type Machine struct {
	initiator string
	now       func() time.Time

	phase    Phase
	session  *Session
	conflict *Conflict
	busy     bool
	// stalled marks a Starting attempt whose outstanding call was released
	// by a hub-reported error. The attempt may be retried or resolved again.
	stalled bool
	attempt EffectKind
	epoch    uint64

	lastErr string
	seenErr string
	status  string
	confirm []string
}

// New returns an Idle machine acting for initiator. An empty initiator
// disables starting sessions.
func New(initiator string, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{initiator: initiator, now: now}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Busy reports whether a start, resume, replace or end call is outstanding.
func (m *Machine) Busy() bool { return m.busy }

// LastError returns the user-visible error, if any.
func (m *Machine) LastError() string { return m.lastErr }

// Status returns the interim progress message, if any.
func (m *Machine) Status() string { return m.status }

// Initiator returns the identity sessions are started for.
func (m *Machine) Initiator() string { return m.initiator }

// Session returns a copy of the adopted session.
func (m *Machine) Session() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return m.session.clone(), true
}

// Locked reports whether session membership is frozen.
func (m *Machine) Locked() bool { return m.session != nil }

// PendingConfirmation returns the non-streaming device names from the last
// confirmation request, until the request is overridden or dismissed.
func (m *Machine) PendingConfirmation() []string {
	return append([]string(nil), m.confirm...)
}

// CanStart reports whether RequestStart would pass its hard guards.
func (m *Machine) CanStart(candidates []registry.Device) bool {
	return m.startGuard(candidates) == nil
}

func (m *Machine) startGuard(candidates []registry.Device) error {
	switch {
	case m.busy:
		return ErrBusy
	case m.session != nil:
		return ErrSessionActive
	case m.conflict != nil:
		return ErrConflictPending
	case !m.settled():
		return ErrBusy
	case m.initiator == "":
		return ErrNoInitiator
	case len(candidates) == 0:
		return ErrNoEligibleDevices
	}
	return nil
}

// RequestStart moves Idle to Starting and returns the start call to issue.
// candidates are the eligible devices marked for inclusion. When any of them
// is not streaming and override is false, it returns a
// *ConfirmationRequiredError and stays Idle.
func (m *Machine) RequestStart(candidates []registry.Device, override bool) (Effect, error) {
	if err := m.startGuard(candidates); err != nil {
		return Effect{}, err
	}
	if !override {
		var idle []string
		for _, d := range candidates {
			if !d.Streaming() {
				idle = append(idle, d.Name)
			}
		}
		if len(idle) > 0 {
			m.confirm = idle
			return Effect{}, &ConfirmationRequiredError{Devices: append([]string(nil), idle...)}
		}
	}
	m.confirm = nil
	m.lastErr = ""
	return m.begin(Starting, EffectStartSession, "Starting session..."), nil
}

// DismissConfirmation drops a pending confirmation request.
func (m *Machine) DismissConfirmation() {
	m.confirm = nil
}

// End moves Active to Ending and returns the end call to issue. The session
// stays reported until a snapshot confirms it is gone.
func (m *Machine) End() (Effect, error) {
	switch {
	case m.busy, m.phase == Ending:
		return Effect{}, ErrBusy
	case m.phase != Active:
		return Effect{}, ErrNoSession
	}
	return m.begin(Ending, EffectEndSession, "Ending session..."), nil
}

// Abort abandons a pending start: local state returns to Idle at once and a
// best-effort stop-streaming call is returned. Results of the abandoned call
// are ignored when they arrive.
func (m *Machine) Abort() (Effect, error) {
	if m.phase != Starting || m.session != nil {
		return Effect{}, ErrNotStarting
	}
	m.phase = Idle
	m.busy = false
	m.stalled = false
	m.attempt = EffectNone
	m.conflict = nil
	m.lastErr = ""
	m.status = ""
	m.epoch++
	return Effect{Kind: EffectStopStreaming, Epoch: m.epoch}, nil
}

// CheckForActive asks the hub to look for a session started elsewhere. It
// does not mark the machine busy.
func (m *Machine) CheckForActive() (Effect, error) {
	switch {
	case m.busy:
		return Effect{}, ErrBusy
	case m.phase == Active:
		return Effect{}, ErrSessionActive
	case m.conflict != nil:
		return Effect{}, ErrConflictPending
	case !m.settled():
		return Effect{}, ErrBusy
	}
	m.status = "Checking for active session..."
	return Effect{Kind: EffectCheckSession, Epoch: m.epoch}, nil
}

// ClearError drops the user-visible error.
func (m *Machine) ClearError() {
	m.lastErr = ""
}

// Reset drops local bookkeeping that does not depend on the hub. An adopted
// session is kept; only a snapshot may end it.
func (m *Machine) Reset() Transition {
	from := m.phase
	m.conflict = nil
	m.confirm = nil
	m.lastErr = ""
	m.status = ""
	if m.session == nil {
		m.phase = Idle
		m.busy = false
		m.stalled = false
		m.attempt = EffectNone
		m.epoch++
	}
	return Transition{From: from, To: m.phase}
}

// settled reports whether no start attempt is in flight: Idle, or Starting
// after a hub error released the outstanding call.
func (m *Machine) settled() bool {
	return m.phase == Idle || (m.phase == Starting && m.stalled)
}

func (m *Machine) begin(next Phase, kind EffectKind, status string) Effect {
	m.phase = next
	m.busy = true
	m.stalled = false
	m.attempt = kind
	m.status = status
	m.epoch++
	return Effect{Kind: kind, Initiator: m.initiator, Epoch: m.epoch}
}

// Observe applies one snapshot tick. A newly reported session id wins over a
// conflict reported in the same tick, and conflicts are only taken up while a
// start attempt is pending.
func (m *Machine) Observe(obs Observation) Transition {
	from := m.phase

	switch {
	case obs.SessionID != "" && (m.session == nil || m.session.ID != obs.SessionID):
		m.adopt(obs)
	case obs.SessionID == "" && m.session != nil:
		m.session = nil
		m.phase = Idle
		m.busy = false
		m.stalled = false
		m.attempt = EffectNone
		m.status = ""
	}

	if m.session == nil {
		switch {
		case obs.ConflictID != "" && m.awaitingStart():
			m.enterConflict(obs.ConflictID, obs.ConflictStartedAt, true)
		case obs.ConflictID == "" && m.phase == Conflicted && m.conflict != nil && m.conflict.observed:
			// The hub withdrew the conflict it had reported.
			m.conflict = nil
			m.phase = Idle
		}
	}

	if obs.Error != m.seenErr {
		m.seenErr = obs.Error
		if obs.Error != "" {
			m.lastErr = obs.Error
			m.status = ""
			m.busy = false
			if m.phase == Starting && m.session == nil {
				m.stalled = true
			}
		}
	}

	return Transition{From: from, To: m.phase}
}

func (m *Machine) awaitingStart() bool {
	return m.phase == Conflicted || (m.phase == Starting && m.attempt == EffectStartSession)
}

func (m *Machine) adopt(obs Observation) {
	m.session = &Session{
		ID:           obs.SessionID,
		StartedAt:    m.now(),
		Devices:      append([]hub.SessionDevice(nil), obs.SessionDevices...),
		Participants: append([]string(nil), obs.Participants...),
	}
	m.phase = Active
	m.busy = false
	m.stalled = false
	m.attempt = EffectNone
	m.conflict = nil
	m.confirm = nil
	m.lastErr = ""
	m.status = ""
}

// Complete applies the outcome of an external call issued for eff.
func (m *Machine) Complete(eff Effect, err error) Transition {
	from := m.phase
	switch eff.Kind {
	case EffectStartSession:
		m.completeStart(eff, err)
	case EffectResumeConflict, EffectReplaceConflict:
		m.completeResolution(eff, err)
	case EffectEndSession:
		m.completeEnd(eff, err)
	case EffectCheckSession:
		m.status = ""
		if err != nil {
			m.lastErr = err.Error()
		}
	}
	return Transition{From: from, To: m.phase}
}

func (m *Machine) completeStart(eff Effect, err error) {
	if eff.Epoch != m.epoch {
		return
	}
	if disp, ok := asConflict(err); ok {
		if m.awaitingStart() {
			m.enterConflict(disp.ActiveID, &disp.StartedAt, false)
		}
		return
	}
	if m.phase != Starting {
		return
	}
	m.busy = false
	m.status = ""
	if err != nil {
		m.phase = Idle
		m.stalled = false
		m.attempt = EffectNone
		m.lastErr = err.Error()
	}
}

func (m *Machine) completeEnd(eff Effect, err error) {
	if eff.Epoch != m.epoch || m.phase != Ending {
		return
	}
	m.busy = false
	if err != nil {
		m.phase = Active
		m.attempt = EffectNone
		m.status = ""
		m.lastErr = err.Error()
	}
}
