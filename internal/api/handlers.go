package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/five82/sessionctl/internal/controller"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/registry"
	"github.com/five82/sessionctl/internal/session"
)

// Handler serves the control surface.
type Handler struct {
	ctrl Controller
}

type errorResponse struct {
	Error   string   `json:"error"`
	Confirm []string `json:"confirm,omitempty"`
}

type healthResponse struct {
	Status              string `json:"status"`
	Phase               string `json:"phase"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastError           string `json:"lastError,omitempty"`
}

// Health handles GET /health. It reports degraded once the hub has missed
// two polls in a row.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	v := h.ctrl.View()
	resp := healthResponse{
		Status:              "ok",
		Phase:               v.Session.Phase.String(),
		ConsecutiveFailures: v.ConsecutiveFailures,
	}
	if v.LastError != nil {
		resp.LastError = v.LastError.Error()
	}
	status := http.StatusOK
	if v.IsOffline() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// State handles GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

// StartSession handles POST /api/session/start. ?override=1 skips the
// non-streaming confirmation.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	override, err := boolParam(r, "override")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid override: "+err.Error())
		return
	}
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.RequestStart(ctx, override)
	})
}

// EndSession handles POST /api/session/end.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.EndSession)
}

// AbortStart handles POST /api/session/abort.
func (h *Handler) AbortStart(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.AbortStart)
}

// CheckSession handles POST /api/session/check.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.CheckForActiveSession)
}

// SetSessionMode handles POST /api/session/mode?enabled=true|false.
func (h *Handler) SetSessionMode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("enabled")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid enabled: "+err.Error())
		return
	}
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.SetSessionMode(ctx, enabled)
	})
}

// ClearError handles POST /api/error/clear.
func (h *Handler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ClearError)
}

// ResumeConflict handles POST /api/conflict/resume.
func (h *Handler) ResumeConflict(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ResumeConflict)
}

// ReplaceConflict handles POST /api/conflict/replace.
func (h *Handler) ReplaceConflict(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ReplaceConflict)
}

// CancelConflict handles POST /api/conflict/cancel.
func (h *Handler) CancelConflict(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.CancelConflict)
}

// Include handles POST /api/devices/{id}/include. With ?value= the flag is
// set; without it the flag is toggled.
func (h *Handler) Include(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw := r.URL.Query().Get("value")
	if raw == "" {
		h.intent(w, r, func(ctx context.Context) error {
			return h.ctrl.ToggleIncluded(ctx, id)
		})
		return
	}
	included, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value: "+err.Error())
		return
	}
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.SetIncluded(ctx, id, included)
	})
}

// ToggleAutoStream handles POST /api/devices/{id}/auto-stream.
func (h *Handler) ToggleAutoStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.ToggleAutoStream(ctx, id)
	})
}

// ToggleStreaming handles POST /api/devices/{id}/stream.
func (h *Handler) ToggleStreaming(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.ToggleStreaming(ctx, id)
	})
}

// ResetDevices handles POST /api/devices/reset.
func (h *Handler) ResetDevices(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ResetDevices)
}

// ToggleScan handles POST /api/scan/toggle.
func (h *Handler) ToggleScan(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ToggleScan)
}

// RefreshBuffer handles POST /api/buffer/refresh.
func (h *Handler) RefreshBuffer(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(ctx context.Context) error {
		_, err := h.ctrl.RefreshBuffer(ctx)
		return err
	})
}

// ResetFailed handles POST /api/buffer/reset-failed?device=. Without a device
// every device is reset.
func (h *Handler) ResetFailed(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	h.intent(w, r, func(ctx context.Context) error {
		_, err := h.ctrl.ResetFailedPackets(ctx, device)
		return err
	})
}

type operationsResponse struct {
	Operations []hub.Operation `json:"operations"`
}

// DeviceOperations handles GET /api/devices/{id}/operations.
func (h *Handler) DeviceOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.ctrl.DeviceOperations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeIntentError(w, err)
		return
	}
	if ops == nil {
		ops = []hub.Operation{}
	}
	writeJSON(w, http.StatusOK, operationsResponse{Operations: ops})
}

// ExecuteOperation handles POST /api/devices/{id}/operations/{op}.
func (h *Handler) ExecuteOperation(w http.ResponseWriter, r *http.Request) {
	id, op := chi.URLParam(r, "id"), chi.URLParam(r, "op")
	h.intent(w, r, func(ctx context.Context) error {
		return h.ctrl.ExecuteOperation(ctx, id, op)
	})
}

// ClearBuffer handles POST /api/buffer/clear.
func (h *Handler) ClearBuffer(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, h.ctrl.ClearBuffer)
}

// intent runs fn and answers 202 with the resulting view, or the mapped error.
func (h *Handler) intent(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctrl.View())
}

func writeIntentError(w http.ResponseWriter, err error) {
	var confirm *session.ConfirmationRequiredError
	switch {
	case errors.As(err, &confirm):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Confirm: confirm.Devices})
	case isGuard(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrUnknownDevice), errors.Is(err, controller.ErrUnknownOperation):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrStopped), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

var guardErrors = []error{
	session.ErrBusy,
	session.ErrSessionActive,
	session.ErrConflictPending,
	session.ErrNoInitiator,
	session.ErrNoEligibleDevices,
	session.ErrNotConflicted,
	session.ErrNoSession,
	session.ErrNotStarting,
	session.ErrSessionLocked,
}

func isGuard(err error) bool {
	for _, g := range guardErrors {
		if errors.Is(err, g) {
			return true
		}
	}
	return false
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
