package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/state"
)

// Controller is the intent surface the API drives.
type Controller interface {
	View() state.View

	RequestStart(ctx context.Context, override bool) error
	EndSession(ctx context.Context) error
	AbortStart(ctx context.Context) error
	CheckForActiveSession(ctx context.Context) error
	ClearError(ctx context.Context) error
	SetSessionMode(ctx context.Context, enabled bool) error

	ResumeConflict(ctx context.Context) error
	ReplaceConflict(ctx context.Context) error
	CancelConflict(ctx context.Context) error

	SetIncluded(ctx context.Context, deviceID string, included bool) error
	ToggleIncluded(ctx context.Context, deviceID string) error
	ToggleAutoStream(ctx context.Context, deviceID string) error
	ToggleStreaming(ctx context.Context, deviceID string) error
	DeviceOperations(ctx context.Context, deviceID string) ([]hub.Operation, error)
	ExecuteOperation(ctx context.Context, deviceID, name string) error
	ToggleScan(ctx context.Context) error
	ResetDevices(ctx context.Context) error

	RefreshBuffer(ctx context.Context) (diagnostics.Stats, error)
	ResetFailedPackets(ctx context.Context, deviceID string) (int, error)
	ClearBuffer(ctx context.Context) error
}

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(ctrl Controller, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	h := &Handler{ctrl: ctrl}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Post("/error/clear", h.ClearError)

		r.Route("/session", func(r chi.Router) {
			r.Post("/start", h.StartSession)
			r.Post("/end", h.EndSession)
			r.Post("/abort", h.AbortStart)
			r.Post("/check", h.CheckSession)
			r.Post("/mode", h.SetSessionMode)
		})

		r.Route("/conflict", func(r chi.Router) {
			r.Post("/resume", h.ResumeConflict)
			r.Post("/replace", h.ReplaceConflict)
			r.Post("/cancel", h.CancelConflict)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/reset", h.ResetDevices)
			r.Post("/{id}/include", h.Include)
			r.Post("/{id}/auto-stream", h.ToggleAutoStream)
			r.Post("/{id}/stream", h.ToggleStreaming)
			r.Get("/{id}/operations", h.DeviceOperations)
			r.Post("/{id}/operations/{op}", h.ExecuteOperation)
		})

		r.Post("/scan/toggle", h.ToggleScan)

		r.Route("/buffer", func(r chi.Router) {
			r.Post("/refresh", h.RefreshBuffer)
			r.Post("/reset-failed", h.ResetFailed)
			r.Post("/clear", h.ClearBuffer)
		})
	})

	return r
}
