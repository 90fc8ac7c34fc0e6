package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/prefs"
	"github.com/five82/sessionctl/internal/session"
	"github.com/five82/sessionctl/internal/state"
)

type fakeController struct {
	mu    sync.Mutex
	view  state.View
	calls []string
	err   error
	ops   []hub.Operation
}

func (f *fakeController) View() state.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) RequestStart(_ context.Context, override bool) error {
	if override {
		return f.record("start:override")
	}
	return f.record("start")
}
func (f *fakeController) EndSession(context.Context) error            { return f.record("end") }
func (f *fakeController) AbortStart(context.Context) error            { return f.record("abort") }
func (f *fakeController) CheckForActiveSession(context.Context) error { return f.record("check") }
func (f *fakeController) ClearError(context.Context) error            { return f.record("clear") }
func (f *fakeController) DismissConfirmation(context.Context) error   { return f.record("dismiss") }
func (f *fakeController) SetSessionMode(_ context.Context, on bool) error {
	if on {
		return f.record("mode:on")
	}
	return f.record("mode:off")
}
func (f *fakeController) ResumeConflict(context.Context) error  { return f.record("resume") }
func (f *fakeController) ReplaceConflict(context.Context) error { return f.record("replace") }
func (f *fakeController) CancelConflict(context.Context) error  { return f.record("cancel") }
func (f *fakeController) ToggleIncluded(_ context.Context, id string) error {
	return f.record("include:" + id)
}
func (f *fakeController) ToggleAutoStream(_ context.Context, id string) error {
	return f.record("auto:" + id)
}
func (f *fakeController) ToggleStreaming(_ context.Context, id string) error {
	return f.record("stream:" + id)
}
func (f *fakeController) StartStreaming(_ context.Context, id string) error {
	return f.record("start_stream:" + id)
}
func (f *fakeController) StopStreaming(_ context.Context, id string) error {
	return f.record("stop_stream:" + id)
}
func (f *fakeController) Connect(_ context.Context, id string) error {
	return f.record("connect:" + id)
}
func (f *fakeController) Disconnect(_ context.Context, id string) error {
	return f.record("disconnect:" + id)
}
func (f *fakeController) DisconnectAll(context.Context) error { return f.record("disconnect_all") }
func (f *fakeController) ToggleScan(context.Context) error    { return f.record("scan") }
func (f *fakeController) ResetDevices(context.Context) error  { return f.record("reset") }
func (f *fakeController) RefreshBuffer(context.Context) (diagnostics.Stats, error) {
	return diagnostics.Stats{}, f.record("refresh")
}
func (f *fakeController) ResetFailedPackets(_ context.Context, id string) (int, error) {
	return 0, f.record("reset_failed:" + id)
}
func (f *fakeController) ClearBuffer(context.Context) error { return f.record("clear_buffer") }
func (f *fakeController) DeviceOperations(_ context.Context, id string) ([]hub.Operation, error) {
	err := f.record("operations:" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops, err
}
func (f *fakeController) ExecuteOperation(_ context.Context, id, name string) error {
	return f.record("operation:" + id + ":" + name)
}

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := New(Options{
		Controller: ctrl,
		PrefsPath:  filepath.Join(t.TempDir(), "prefs.toml"),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func twoDevices() []state.Device {
	return []state.Device{
		{ID: "a", Name: "Left", Connection: hub.ConnReady, Stream: hub.StreamStreaming, Included: true, Eligible: true},
		{ID: "b", Name: "Right", Connection: hub.ConnReady, Stream: hub.StreamIdle, Included: true, Eligible: true},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, feeding any intent or
// operations result back into the model.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	updated, cmd := m.Update(keyMsg(k))
	m = updated.(Model)
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case intentResultMsg, operationsMsg:
		updated, _ = m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func withView(m Model, v state.View) Model {
	if v.LastUpdated.IsZero() {
		v.LastUpdated = time.Now()
	}
	updated, _ := m.Update(viewMsg(v))
	return updated.(Model)
}

func TestSessionKeysIssueIntents(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"s", "start"},
		{"x", "end"},
		{"a", "abort"},
		{"c", "check"},
		{"C", "clear"},
		{"r", "scan"},
		{"R", "reset"},
		{"D", "disconnect_all"},
		{"+", "start_stream:"},
		{"-", "stop_stream:"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ctrl := &fakeController{}
			m := newTestModel(t, ctrl)
			press(t, m, tt.key)
			if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}
}

func TestDeviceKeysTargetSelection(t *testing.T) {
	ctrl := &fakeController{}
	m := withView(newTestModel(t, ctrl), state.View{Devices: twoDevices()})

	if m.selectedID != "a" {
		t.Fatalf("selectedID = %q, want a", m.selectedID)
	}
	m = press(t, m, "j")
	m = press(t, m, " ")
	m = press(t, m, "enter")
	m = press(t, m, "A")
	m = press(t, m, "o")
	m = press(t, m, "O")
	m = press(t, m, "k")
	press(t, m, " ")

	want := []string{"include:b", "stream:b", "auto:b", "connect:b", "disconnect:b", "include:a"}
	got := ctrl.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestSelectionFollowsDeviceRemoval(t *testing.T) {
	ctrl := &fakeController{}
	m := withView(newTestModel(t, ctrl), state.View{Devices: twoDevices()})
	m = press(t, m, "G")
	if m.selectedID != "b" {
		t.Fatalf("selectedID = %q, want b", m.selectedID)
	}
	m = withView(m, state.View{Devices: twoDevices()[:1]})
	if m.selectedID != "a" {
		t.Fatalf("selectedID after removal = %q, want a", m.selectedID)
	}
}

func TestConflictModalFollowsSession(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	conflicted := state.View{Session: state.Session{
		Phase:    session.Conflicted,
		Conflict: &session.Conflict{SessionID: "other", StartedAt: time.Now().Add(-time.Minute)},
	}}
	m = withView(m, conflicted)
	if _, ok := m.modal.(conflictModal); !ok {
		t.Fatalf("modal = %T, want conflictModal", m.modal)
	}
	if out := m.View(); !strings.Contains(out, "other") {
		t.Fatalf("modal view missing session id:\n%s", out)
	}

	// Global keys are swallowed while the modal is open.
	m = press(t, m, "s")
	m = press(t, m, "r")
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "resume" {
		t.Fatalf("calls = %v, want [resume]", calls)
	}
	if m.modal == nil {
		t.Fatal("modal closed before the session left the conflicted phase")
	}

	m = withView(m, state.View{Session: state.Session{Phase: session.Active, ID: "other"}})
	if m.modal != nil {
		t.Fatalf("modal = %T, want nil once active", m.modal)
	}
}

func TestConflictModalChoices(t *testing.T) {
	for _, tt := range []struct{ key, want string }{
		{"n", "replace"},
		{"c", "cancel"},
		{"esc", "cancel"},
	} {
		t.Run(tt.key, func(t *testing.T) {
			ctrl := &fakeController{}
			m := withView(newTestModel(t, ctrl), state.View{Session: state.Session{
				Phase:    session.Conflicted,
				Conflict: &session.Conflict{SessionID: "other"},
			}})
			press(t, m, tt.key)
			if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}
}

func TestConfirmModal(t *testing.T) {
	for _, tt := range []struct{ key, want string }{
		{"y", "start:override"},
		{"n", "dismiss"},
	} {
		t.Run(tt.key, func(t *testing.T) {
			ctrl := &fakeController{}
			m := withView(newTestModel(t, ctrl), state.View{
				Devices: twoDevices(),
				Session: state.Session{Phase: session.Idle, Confirm: []string{"Right"}, CanStart: true},
			})
			if _, ok := m.modal.(confirmModal); !ok {
				t.Fatalf("modal = %T, want confirmModal", m.modal)
			}
			if out := m.View(); !strings.Contains(out, "Right") {
				t.Fatalf("confirm view missing device name:\n%s", out)
			}
			m = press(t, m, tt.key)
			if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%s]", calls, tt.want)
			}
			if m.modal != nil {
				t.Fatalf("modal = %T, want closed", m.modal)
			}
		})
	}
}

func TestIntentErrorsFlash(t *testing.T) {
	ctrl := &fakeController{err: session.ErrSessionLocked}
	m := withView(newTestModel(t, ctrl), state.View{Devices: twoDevices()})
	m = press(t, m, " ")
	if !strings.Contains(m.flash, session.ErrSessionLocked.Error()) {
		t.Fatalf("flash = %q", m.flash)
	}

	ctrl.err = &session.ConfirmationRequiredError{Devices: []string{"Right"}}
	m = press(t, m, "s")
	if m.flash != "" {
		t.Fatalf("flash = %q, want cleared for confirmation", m.flash)
	}
}

func TestThemeCycleAndModePersist(t *testing.T) {
	ctrl := &fakeController{}
	m := withView(newTestModel(t, ctrl), state.View{Session: state.Session{Mode: true}})
	start := m.theme.Name

	m = press(t, m, "T")
	if m.theme.Name == start {
		t.Fatalf("theme did not change from %q", start)
	}
	got, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if got.Theme != m.theme.Name || !got.SessionMode {
		t.Fatalf("prefs = %+v, want theme %q with session mode on", got, m.theme.Name)
	}

	press(t, m, "m")
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "mode:off" {
		t.Fatalf("calls = %v, want [mode:off]", calls)
	}
	got, _ = prefs.Load(m.prefsPath)
	if got.SessionMode {
		t.Fatal("session mode still persisted as on")
	}
}

func TestBufferViewRefreshesOnEntry(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)
	m = press(t, m, "b")
	if m.currentView != ViewBuffer {
		t.Fatalf("currentView = %v, want buffer", m.currentView)
	}
	m = press(t, m, "f")
	press(t, m, "X")

	want := "refresh,reset_failed:,clear_buffer"
	if got := strings.Join(ctrl.Calls(), ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestViewsRender(t *testing.T) {
	ctrl := &fakeController{}
	started := time.Now().Add(-90 * time.Second)
	m := withView(newTestModel(t, ctrl), state.View{
		Devices: twoDevices(),
		Session: state.Session{
			Phase:        session.Active,
			ID:           "sess-1",
			StartedAt:    &started,
			Participants: []string{"a", "b"},
			Initiator:    "u1",
		},
		Buffer: diagnostics.Snapshot{Stats: &diagnostics.Stats{
			Buffer:      hub.BufferStats{TotalPackets: 10, TotalPending: 2, TotalFailed: 1},
			Uploads:     map[string]hub.UploadStats{"a": {SuccessCount: 8, TotalAttempts: 10}},
			SuccessRate: 0.8,
			FetchedAt:   time.Now(),
		}},
	})

	out := m.View()
	for _, want := range []string{"sess-1", "Left", "Right", "ACTIVE"} {
		if !strings.Contains(out, want) {
			t.Fatalf("devices view missing %q", want)
		}
	}

	m.currentView = ViewBuffer
	out = m.View()
	for _, want := range []string{"Uploaded", "80.0%", "Left"} {
		if !strings.Contains(out, want) {
			t.Fatalf("buffer view missing %q", want)
		}
	}

	m.currentView = ViewLogs
	if out = m.View(); !strings.Contains(out, "Controller log") {
		t.Fatal("log view missing title")
	}
}

func TestHeaderShowsOffline(t *testing.T) {
	ctrl := &fakeController{}
	m := withView(newTestModel(t, ctrl), state.View{
		ConsecutiveFailures: 3,
		LastError:           errors.New("dial tcp: connection refused"),
	})
	if out := m.renderHeader(); !strings.Contains(out, "OFFLINE") {
		t.Fatalf("header = %q, want OFFLINE", out)
	}
}

func TestConflictModalShowsHubErrorAfterResume(t *testing.T) {
	ctrl := &fakeController{}
	conflict := &session.Conflict{SessionID: "other"}
	m := withView(newTestModel(t, ctrl), state.View{Session: state.Session{
		Phase: session.Conflicted, Conflict: conflict,
	}})
	m = press(t, m, "r")

	m = withView(m, state.View{Session: state.Session{
		Phase: session.Starting, Conflict: conflict, LastError: "backend unreachable",
	}})
	cm, ok := m.modal.(conflictModal)
	if !ok {
		t.Fatalf("modal = %T, want conflictModal", m.modal)
	}
	if cm.pending != "" {
		t.Fatalf("pending = %q, want cleared after hub error", cm.pending)
	}
	if out := m.View(); !strings.Contains(out, "backend unreachable") {
		t.Fatalf("modal view missing hub error:\n%s", out)
	}
}

func TestOperationsModalRunsSelection(t *testing.T) {
	ctrl := &fakeController{ops: []hub.Operation{
		{Name: "calibrate", Label: "Calibrate"},
		{Name: "mark"},
	}}
	m := withView(newTestModel(t, ctrl), state.View{Devices: twoDevices()})

	m = press(t, m, "p")
	om, ok := m.modal.(operationsModal)
	if !ok {
		t.Fatalf("modal = %T, want operationsModal", m.modal)
	}
	if !strings.Contains(om.View(m.theme, m.width, m.height), "Calibrate") {
		t.Fatal("operations modal missing label")
	}

	// A view refresh keeps the picker open.
	m = withView(m, state.View{Devices: twoDevices()})
	if _, ok := m.modal.(operationsModal); !ok {
		t.Fatalf("modal after refresh = %T, want operationsModal", m.modal)
	}

	m = press(t, m, "7")
	if m.modal == nil {
		t.Fatal("out-of-range digit closed the modal")
	}
	m = press(t, m, "2")
	if m.modal != nil {
		t.Fatalf("modal = %T after selection, want nil", m.modal)
	}
	want := []string{"operations:a", "operation:a:mark"}
	if got := ctrl.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestOperationsKeyWithNoneFlashes(t *testing.T) {
	ctrl := &fakeController{}
	m := withView(newTestModel(t, ctrl), state.View{Devices: twoDevices()})

	m = press(t, m, "p")
	if m.modal != nil {
		t.Fatalf("modal = %T, want nil", m.modal)
	}
	if m.flash != "No operations for Left" {
		t.Fatalf("flash = %q, want No operations for Left", m.flash)
	}

	ctrl.ops = []hub.Operation{{Name: "calibrate"}}
	m = press(t, m, "p")
	m = press(t, m, "esc")
	if m.modal != nil {
		t.Fatalf("modal = %T after esc, want nil", m.modal)
	}
	for _, c := range ctrl.Calls() {
		if strings.HasPrefix(c, "operation:") {
			t.Fatalf("esc ran %s", c)
		}
	}
}
