package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/five82/sessionctl/internal/controller"
	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
	"github.com/five82/sessionctl/internal/session"
	"github.com/five82/sessionctl/internal/state"
)

type fakeController struct {
	view  state.View
	calls []string
	err   error
	ops   []hub.Operation
}

func (f *fakeController) View() state.View { return f.view }

func (f *fakeController) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) RequestStart(_ context.Context, override bool) error {
	if override {
		return f.record("start:override")
	}
	return f.record("start")
}
func (f *fakeController) EndSession(context.Context) error   { return f.record("end") }
func (f *fakeController) AbortStart(context.Context) error   { return f.record("abort") }
func (f *fakeController) ClearError(context.Context) error   { return f.record("clear_error") }
func (f *fakeController) ToggleScan(context.Context) error   { return f.record("scan") }
func (f *fakeController) ResetDevices(context.Context) error { return f.record("reset_devices") }
func (f *fakeController) ClearBuffer(context.Context) error  { return f.record("clear_buffer") }
func (f *fakeController) CheckForActiveSession(context.Context) error {
	return f.record("check")
}
func (f *fakeController) SetSessionMode(_ context.Context, enabled bool) error {
	if enabled {
		return f.record("mode:on")
	}
	return f.record("mode:off")
}
func (f *fakeController) ResumeConflict(context.Context) error  { return f.record("resume") }
func (f *fakeController) ReplaceConflict(context.Context) error { return f.record("replace") }
func (f *fakeController) CancelConflict(context.Context) error  { return f.record("cancel") }
func (f *fakeController) SetIncluded(_ context.Context, id string, included bool) error {
	if included {
		return f.record("include:" + id + ":true")
	}
	return f.record("include:" + id + ":false")
}
func (f *fakeController) ToggleIncluded(_ context.Context, id string) error {
	return f.record("toggle_include:" + id)
}
func (f *fakeController) ToggleAutoStream(_ context.Context, id string) error {
	return f.record("auto_stream:" + id)
}
func (f *fakeController) ToggleStreaming(_ context.Context, id string) error {
	return f.record("stream:" + id)
}
func (f *fakeController) RefreshBuffer(context.Context) (diagnostics.Stats, error) {
	return diagnostics.Stats{}, f.record("refresh")
}
func (f *fakeController) ResetFailedPackets(_ context.Context, id string) (int, error) {
	return 3, f.record("reset_failed:" + id)
}

func (f *fakeController) DeviceOperations(_ context.Context, id string) ([]hub.Operation, error) {
	return f.ops, f.record("operations:" + id)
}
func (f *fakeController) ExecuteOperation(_ context.Context, id, name string) error {
	return f.record("operation:" + id + ":" + name)
}

func newTestServer(t *testing.T, ctrl *fakeController) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(ctrl, logger))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp, body
}

func TestRoutesDispatchIntents(t *testing.T) {
	tests := []struct {
		path string
		call string
	}{
		{"/api/session/start", "start"},
		{"/api/session/start?override=1", "start:override"},
		{"/api/session/end", "end"},
		{"/api/session/abort", "abort"},
		{"/api/session/check", "check"},
		{"/api/session/mode?enabled=false", "mode:off"},
		{"/api/error/clear", "clear_error"},
		{"/api/conflict/resume", "resume"},
		{"/api/conflict/replace", "replace"},
		{"/api/conflict/cancel", "cancel"},
		{"/api/devices/a/include", "toggle_include:a"},
		{"/api/devices/a/include?value=false", "include:a:false"},
		{"/api/devices/b/auto-stream", "auto_stream:b"},
		{"/api/devices/b/stream", "stream:b"},
		{"/api/devices/reset", "reset_devices"},
		{"/api/devices/b/operations/calibrate", "operation:b:calibrate"},
		{"/api/scan/toggle", "scan"},
		{"/api/buffer/refresh", "refresh"},
		{"/api/buffer/reset-failed?device=c", "reset_failed:c"},
		{"/api/buffer/reset-failed", "reset_failed:"},
		{"/api/buffer/clear", "clear_buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ctrl := &fakeController{}
			srv := newTestServer(t, ctrl)
			resp, _ := post(t, srv, tt.path)
			if resp.StatusCode != http.StatusAccepted {
				t.Fatalf("status = %d, want 202", resp.StatusCode)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.call {
				t.Fatalf("calls = %v, want [%s]", ctrl.calls, tt.call)
			}
		})
	}
}

func TestIntentErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"guard", session.ErrBusy, http.StatusConflict},
		{"wrapped guard", errors.Join(errors.New("start"), session.ErrSessionActive), http.StatusConflict},
		{"unknown device", registry.ErrUnknownDevice, http.StatusNotFound},
		{"unknown operation", controller.ErrUnknownOperation, http.StatusNotFound},
		{"stopped", controller.ErrStopped, http.StatusServiceUnavailable},
		{"hub failure", errors.New("hub down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{err: tt.err}
			srv := newTestServer(t, ctrl)
			resp, body := post(t, srv, "/api/session/start")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body["error"] != tt.err.Error() {
				t.Fatalf("error = %v, want %q", body["error"], tt.err.Error())
			}
		})
	}
}

func TestStartConfirmationListsDevices(t *testing.T) {
	ctrl := &fakeController{err: &session.ConfirmationRequiredError{Devices: []string{"a", "b"}}}
	srv := newTestServer(t, ctrl)

	resp, body := post(t, srv, "/api/session/start")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	confirm, ok := body["confirm"].([]any)
	if !ok || len(confirm) != 2 || confirm[0] != "a" || confirm[1] != "b" {
		t.Fatalf("confirm = %v, want [a b]", body["confirm"])
	}
}

func TestBadQueryParameters(t *testing.T) {
	for _, path := range []string{
		"/api/session/start?override=maybe",
		"/api/session/mode",
		"/api/devices/a/include?value=nope",
	} {
		t.Run(path, func(t *testing.T) {
			ctrl := &fakeController{}
			srv := newTestServer(t, ctrl)
			resp, _ := post(t, srv, path)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if len(ctrl.calls) != 0 {
				t.Fatalf("unexpected calls %v", ctrl.calls)
			}
		})
	}
}

func TestStateReturnsView(t *testing.T) {
	ctrl := &fakeController{view: state.View{
		Devices: []state.Device{{ID: "a", Name: "Left", Included: true, Eligible: true}},
		Session: state.Session{Phase: session.Active, ID: "s1"},
	}}
	srv := newTestServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `"phase":"active"`) {
		t.Fatalf("body missing phase: %s", raw)
	}
}

func TestHealthReportsDegradedWhenOffline(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	ctrl.view = state.View{ConsecutiveFailures: 2, LastError: errors.New("dial refused")}
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.LastError != "dial refused" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestDeviceOperationsListsOffered(t *testing.T) {
	ctrl := &fakeController{ops: []hub.Operation{{Name: "calibrate", Label: "Calibrate"}}}
	srv := newTestServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/api/devices/a/operations")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body operationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Operations) != 1 || body.Operations[0].Name != "calibrate" {
		t.Fatalf("operations = %+v", body.Operations)
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != "operations:a" {
		t.Fatalf("calls = %v, want [operations:a]", ctrl.calls)
	}
}

func TestDeviceOperationsUnknownDevice(t *testing.T) {
	ctrl := &fakeController{err: registry.ErrUnknownDevice}
	srv := newTestServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/api/devices/zz/operations")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
