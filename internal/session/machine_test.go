package session

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newMachine(initiator string) *Machine {
	return New(initiator, func() time.Time { return fixedNow })
}

func device(id, name string, stream hub.StreamState) registry.Device {
	return registry.Device{ID: id, Name: name, Connection: hub.ConnReady, Stream: stream, Included: true}
}

func streaming(id, name string) registry.Device {
	return device(id, name, hub.StreamStreaming)
}

func mustStart(t *testing.T, m *Machine, candidates ...registry.Device) Effect {
	t.Helper()
	eff, err := m.RequestStart(candidates, false)
	if err != nil {
		t.Fatalf("RequestStart error = %v, want nil", err)
	}
	return eff
}

func activate(t *testing.T, m *Machine, id string, participants ...string) {
	t.Helper()
	eff := mustStart(t, m, streaming("d1", "Ring"))
	m.Complete(eff, nil)
	m.Observe(Observation{SessionID: id, Participants: participants})
	if m.Phase() != Active {
		t.Fatalf("Phase = %v, want active", m.Phase())
	}
}

func TestStart_HappyPath(t *testing.T) {
	m := newMachine("u1")

	eff := mustStart(t, m, streaming("d1", "Ring"))
	if eff.Kind != EffectStartSession || eff.Initiator != "u1" {
		t.Fatalf("effect = %#v, want start_session for u1", eff)
	}
	if m.Phase() != Starting || !m.Busy() {
		t.Fatalf("Phase = %v busy = %v, want starting/busy", m.Phase(), m.Busy())
	}
	if m.Status() == "" {
		t.Fatalf("Status empty, want progress message")
	}

	// Call success alone does not advance the machine.
	m.Complete(eff, nil)
	if m.Phase() != Starting || m.Busy() {
		t.Fatalf("after completion Phase = %v busy = %v, want starting/not busy", m.Phase(), m.Busy())
	}

	tr := m.Observe(Observation{
		SessionID:      "s1",
		SessionDevices: []hub.SessionDevice{{DeviceID: "d1", Make: "Oura"}},
		Participants:   []string{"d1"},
	})
	if !tr.Changed() || tr.To != Active {
		t.Fatalf("transition = %+v, want starting->active", tr)
	}
	sess, ok := m.Session()
	if !ok || sess.ID != "s1" {
		t.Fatalf("Session = %+v ok=%v, want s1", sess, ok)
	}
	if len(sess.Participants) != 1 || len(sess.Devices) != 1 {
		t.Fatalf("frozen lists = %v / %v, want one device each", sess.Participants, sess.Devices)
	}
	if !sess.StartedAt.Equal(fixedNow) {
		t.Fatalf("StartedAt = %v, want %v", sess.StartedAt, fixedNow)
	}
	if m.Status() != "" || m.LastError() != "" {
		t.Fatalf("status/error = %q/%q, want cleared", m.Status(), m.LastError())
	}
}

func TestRequestStart_Guards(t *testing.T) {
	ready := []registry.Device{streaming("d1", "Ring")}

	tests := []struct {
		name       string
		initiator  string
		setup      func(*testing.T, *Machine)
		candidates []registry.Device
		want       error
	}{
		{name: "no initiator", initiator: "", candidates: ready, want: ErrNoInitiator},
		{name: "no candidates", initiator: "u1", want: ErrNoEligibleDevices},
		{
			name: "busy starting", initiator: "u1", candidates: ready,
			setup: func(t *testing.T, m *Machine) { mustStart(t, m, ready...) },
			want:  ErrBusy,
		},
		{
			name: "active", initiator: "u1", candidates: ready,
			setup: func(t *testing.T, m *Machine) { activate(t, m, "s1") },
			want:  ErrSessionActive,
		},
		{
			name: "conflicted", initiator: "u1", candidates: ready,
			setup: func(t *testing.T, m *Machine) {
				eff := mustStart(t, m, ready...)
				m.Complete(eff, hub.Conflict("s0", fixedNow))
			},
			want: ErrConflictPending,
		},
		{
			name: "ending", initiator: "u1", candidates: ready,
			setup: func(t *testing.T, m *Machine) {
				activate(t, m, "s1")
				eff, _ := m.End()
				m.Complete(eff, nil)
			},
			want: ErrSessionActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine(tt.initiator)
			if tt.setup != nil {
				tt.setup(t, m)
			}
			before := m.Phase()
			_, err := m.RequestStart(tt.candidates, true)
			if !errors.Is(err, tt.want) {
				t.Fatalf("RequestStart error = %v, want %v", err, tt.want)
			}
			if m.Phase() != before {
				t.Fatalf("Phase = %v, want unchanged %v", m.Phase(), before)
			}
			if m.CanStart(tt.candidates) {
				t.Fatalf("CanStart = true, want false")
			}
		})
	}
}

func TestRequestStart_EndingIsLocked(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1")
	if _, err := m.End(); err != nil {
		t.Fatalf("End error = %v", err)
	}
	// Ending keeps the session until a snapshot drops it.
	if _, err := m.RequestStart([]registry.Device{streaming("d1", "Ring")}, true); err == nil {
		t.Fatalf("RequestStart while ending = nil, want error")
	}
	if !m.Locked() {
		t.Fatalf("Locked = false while ending, want true")
	}
}

func TestRequestStart_ConfirmationForIdleDevices(t *testing.T) {
	m := newMachine("u1")
	candidates := []registry.Device{
		streaming("d1", "Ring"),
		device("d2", "Strap", hub.StreamIdle),
		device("d3", "Patch", hub.StreamStalled),
	}

	_, err := m.RequestStart(candidates, false)
	var confirm *ConfirmationRequiredError
	if !errors.As(err, &confirm) {
		t.Fatalf("RequestStart error = %v, want *ConfirmationRequiredError", err)
	}
	if want := []string{"Strap", "Patch"}; !reflect.DeepEqual(confirm.Devices, want) {
		t.Fatalf("confirm devices = %v, want %v", confirm.Devices, want)
	}
	if m.Phase() != Idle || m.Busy() {
		t.Fatalf("Phase = %v busy = %v, want idle", m.Phase(), m.Busy())
	}
	if got := m.PendingConfirmation(); len(got) != 2 {
		t.Fatalf("PendingConfirmation = %v, want 2 names", got)
	}

	eff, err := m.RequestStart(candidates, true)
	if err != nil || eff.Kind != EffectStartSession {
		t.Fatalf("override RequestStart = %#v, %v; want start effect", eff, err)
	}
	if m.Phase() != Starting {
		t.Fatalf("Phase = %v, want starting", m.Phase())
	}
	if got := m.PendingConfirmation(); len(got) != 0 {
		t.Fatalf("PendingConfirmation = %v after override, want empty", got)
	}
}

func TestDismissConfirmation(t *testing.T) {
	m := newMachine("u1")
	_, _ = m.RequestStart([]registry.Device{device("d1", "Ring", hub.StreamIdle)}, false)
	m.DismissConfirmation()
	if got := m.PendingConfirmation(); len(got) != 0 {
		t.Fatalf("PendingConfirmation = %v, want empty", got)
	}
}

func TestStart_FailureReturnsToIdle(t *testing.T) {
	m := newMachine("u1")
	eff := mustStart(t, m, streaming("d1", "Ring"))

	m.Complete(eff, &hub.Disposition{Kind: hub.DispositionRejected, Reason: "not signed in"})
	if m.Phase() != Idle || m.Busy() {
		t.Fatalf("Phase = %v busy = %v, want idle", m.Phase(), m.Busy())
	}
	if m.LastError() != "start rejected: not signed in" {
		t.Fatalf("LastError = %q", m.LastError())
	}

	// Retry is just another request.
	if _, err := m.RequestStart([]registry.Device{streaming("d1", "Ring")}, false); err != nil {
		t.Fatalf("retry RequestStart error = %v", err)
	}
	if m.LastError() != "" {
		t.Fatalf("LastError = %q after retry, want cleared", m.LastError())
	}
}

func TestEnd_WaitsForSnapshot(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1", "d1")

	eff, err := m.End()
	if err != nil || eff.Kind != EffectEndSession {
		t.Fatalf("End = %#v, %v; want end effect", eff, err)
	}
	if m.Phase() != Ending || !m.Busy() {
		t.Fatalf("Phase = %v busy = %v, want ending/busy", m.Phase(), m.Busy())
	}
	if _, err := m.End(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second End error = %v, want ErrBusy", err)
	}

	m.Complete(eff, nil)
	if m.Phase() != Ending {
		t.Fatalf("Phase = %v after completion, want ending until snapshot", m.Phase())
	}
	if _, ok := m.Session(); !ok {
		t.Fatalf("session cleared before snapshot confirmed")
	}

	m.Observe(Observation{SessionID: "s1"})
	if m.Phase() != Ending {
		t.Fatalf("Phase = %v on unchanged snapshot, want ending", m.Phase())
	}

	m.Observe(Observation{})
	if m.Phase() != Idle {
		t.Fatalf("Phase = %v, want idle", m.Phase())
	}
	if _, ok := m.Session(); ok {
		t.Fatalf("session still present after null snapshot")
	}
}

func TestEnd_FailureKeepsActive(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1")
	eff, _ := m.End()

	m.Complete(eff, errors.New("timeout"))
	if m.Phase() != Active || m.Busy() {
		t.Fatalf("Phase = %v busy = %v, want active", m.Phase(), m.Busy())
	}
	if m.LastError() != "timeout" {
		t.Fatalf("LastError = %q, want timeout", m.LastError())
	}
}

func TestEnd_RequiresActive(t *testing.T) {
	m := newMachine("u1")
	if _, err := m.End(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("End error = %v, want ErrNoSession", err)
	}
}

func TestActive_FrozenParticipants(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1", "d1", "d2")

	m.Observe(Observation{SessionID: "s1", Participants: []string{"d3"}})
	m.Observe(Observation{SessionID: "s1"})

	sess, _ := m.Session()
	if want := []string{"d1", "d2"}; !reflect.DeepEqual(sess.Participants, want) {
		t.Fatalf("Participants = %v, want %v", sess.Participants, want)
	}

	sess.Participants[0] = "mutated"
	again, _ := m.Session()
	if again.Participants[0] != "d1" {
		t.Fatalf("Session() aliases internal slice")
	}
}

func TestActive_NewSessionIDReadopts(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1", "d1")

	m.Observe(Observation{SessionID: "s2", Participants: []string{"d2"}})
	sess, _ := m.Session()
	if sess.ID != "s2" || sess.Participants[0] != "d2" {
		t.Fatalf("Session = %+v, want s2 with d2", sess)
	}
}

func TestObserve_AdoptsSessionFromIdle(t *testing.T) {
	m := newMachine("")
	m.Observe(Observation{SessionID: "remote"})
	if m.Phase() != Active {
		t.Fatalf("Phase = %v, want active for session started elsewhere", m.Phase())
	}
}

func TestObserve_SessionErrorIsOrthogonal(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1")

	m.Observe(Observation{SessionID: "s1", Error: "upload backend unreachable"})
	if m.Phase() != Active {
		t.Fatalf("Phase = %v, want active", m.Phase())
	}
	if m.LastError() != "upload backend unreachable" {
		t.Fatalf("LastError = %q", m.LastError())
	}

	m.ClearError()
	m.Observe(Observation{SessionID: "s1", Error: "upload backend unreachable"})
	if m.LastError() != "" {
		t.Fatalf("unchanged error resurfaced: %q", m.LastError())
	}
}

func TestObserve_SessionErrorClearsBusy(t *testing.T) {
	m := newMachine("u1")
	mustStart(t, m, streaming("d1", "Ring"))

	m.Observe(Observation{Error: "device timeout"})
	if m.Phase() != Starting {
		t.Fatalf("Phase = %v, want starting", m.Phase())
	}
	if m.Busy() || m.Status() != "" {
		t.Fatalf("busy = %v status = %q, want cleared", m.Busy(), m.Status())
	}
	if m.LastError() != "device timeout" {
		t.Fatalf("LastError = %q", m.LastError())
	}
}

func TestAbort_ForcesIdleAndDropsLateResult(t *testing.T) {
	m := newMachine("u1")
	eff := mustStart(t, m, streaming("d1", "Ring"))

	stop, err := m.Abort()
	if err != nil || stop.Kind != EffectStopStreaming {
		t.Fatalf("Abort = %#v, %v; want stop_streaming", stop, err)
	}
	if m.Phase() != Idle || m.Busy() || m.LastError() != "" {
		t.Fatalf("Phase = %v busy = %v err = %q, want clean idle", m.Phase(), m.Busy(), m.LastError())
	}

	m.Complete(eff, hub.Conflict("s0", fixedNow))
	if m.Phase() != Idle {
		t.Fatalf("Phase = %v after stale completion, want idle", m.Phase())
	}
	m.Observe(Observation{ConflictID: "s0"})
	if m.Phase() != Idle {
		t.Fatalf("Phase = %v after stale conflict snapshot, want idle", m.Phase())
	}

	if _, err := m.Abort(); !errors.Is(err, ErrNotStarting) {
		t.Fatalf("Abort from idle error = %v, want ErrNotStarting", err)
	}
}

func TestCheckForActive(t *testing.T) {
	m := newMachine("u1")
	eff, err := m.CheckForActive()
	if err != nil || eff.Kind != EffectCheckSession {
		t.Fatalf("CheckForActive = %#v, %v", eff, err)
	}
	if m.Busy() || m.Status() == "" {
		t.Fatalf("busy = %v status = %q, want idle with status", m.Busy(), m.Status())
	}
	m.Complete(eff, nil)
	if m.Status() != "" {
		t.Fatalf("Status = %q after completion, want cleared", m.Status())
	}

	activate(t, m, "s1")
	if _, err := m.CheckForActive(); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("CheckForActive while active error = %v, want ErrSessionActive", err)
	}
}

func TestReset_KeepsAdoptedSession(t *testing.T) {
	m := newMachine("u1")
	activate(t, m, "s1")
	m.Observe(Observation{SessionID: "s1", Error: "boom"})

	m.Reset()
	if m.Phase() != Active || m.LastError() != "" {
		t.Fatalf("Phase = %v err = %q, want active with cleared error", m.Phase(), m.LastError())
	}

	other := newMachine("u1")
	mustStart(t, other, streaming("d1", "Ring"))
	tr := other.Reset()
	if tr.To != Idle || other.Busy() {
		t.Fatalf("Reset transition = %+v busy = %v, want idle", tr, other.Busy())
	}
}

func TestPhase_String(t *testing.T) {
	if Conflicted.String() != "conflicted" || Phase(42).String() != "unknown" {
		t.Fatalf("unexpected phase names: %q %q", Conflicted, Phase(42))
	}
	b, err := Ending.MarshalJSON()
	if err != nil || string(b) != `"ending"` {
		t.Fatalf("MarshalJSON = %s, %v", b, err)
	}
}

func TestObserve_SessionErrorAllowsRetry(t *testing.T) {
	m := newMachine("u1")
	ring := streaming("d1", "Ring")
	first := mustStart(t, m, ring)

	m.Observe(Observation{Error: "device timeout"})
	if !m.CanStart([]registry.Device{ring}) {
		t.Fatal("CanStart = false after hub error, want retry allowed")
	}
	if _, err := m.CheckForActive(); err != nil {
		t.Fatalf("CheckForActive after hub error = %v, want nil", err)
	}

	retry := mustStart(t, m, ring)
	if retry.Kind != EffectStartSession || retry.Epoch == first.Epoch {
		t.Fatalf("retry = %#v, want a new start effect", retry)
	}
	if !m.Busy() || m.Phase() != Starting {
		t.Fatalf("Phase = %v busy = %v, want starting/busy", m.Phase(), m.Busy())
	}

	// The abandoned first call no longer moves the machine.
	m.Complete(first, errors.New("late failure"))
	if m.Phase() != Starting || !m.Busy() {
		t.Fatalf("Phase = %v busy = %v after stale completion", m.Phase(), m.Busy())
	}
}

func TestStart_AcceptedCallStillBlocksRetry(t *testing.T) {
	m := newMachine("u1")
	ring := streaming("d1", "Ring")
	eff := mustStart(t, m, ring)
	m.Complete(eff, nil)

	if m.Busy() {
		t.Fatal("Busy = true after accepted call")
	}
	if _, err := m.RequestStart([]registry.Device{ring}, false); !errors.Is(err, ErrBusy) {
		t.Fatalf("RequestStart while awaiting snapshot = %v, want ErrBusy", err)
	}
	if m.CanStart([]registry.Device{ring}) {
		t.Fatal("CanStart = true while awaiting snapshot")
	}
}
