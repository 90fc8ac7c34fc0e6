package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SnapshotReader reads the hub's live snapshot.
type SnapshotReader interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// SessionService issues session intents. Apart from StartSession, whose error
// may be a *Disposition, the effect of each call is only visible through a
// later snapshot.
type SessionService interface {
	StartSession(ctx context.Context, initiatorID string) error
	ResumeConflictingSession(ctx context.Context) error
	EndConflictingAndStartNew(ctx context.Context) error
	CancelPendingConflict(ctx context.Context) error
	EndActiveSession(ctx context.Context) error
	CheckForActiveSession(ctx context.Context) error
	SetSessionMode(ctx context.Context, enabled bool) error
}

// BufferService exposes the hub's upload buffer counters and maintenance calls.
type BufferService interface {
	BufferStats(ctx context.Context) (BufferStats, error)
	UploadStats(ctx context.Context) (map[string]UploadStats, error)
	ResetFailedPackets(ctx context.Context, deviceID string) (int, error)
	ClearBuffer(ctx context.Context) error
}

// DeviceTransport issues radio-level intents. An empty deviceID addresses all
// devices where the hub supports it.
type DeviceTransport interface {
	StartScan(ctx context.Context) error
	StopScan(ctx context.Context) error
	Connect(ctx context.Context, deviceID string) error
	Disconnect(ctx context.Context, deviceID string) error
	DisconnectAll(ctx context.Context) error
	SetAutoStream(ctx context.Context, deviceID string, enabled bool) error
	StartStreaming(ctx context.Context, deviceID string) error
	StopStreaming(ctx context.Context, deviceID string) error
	DeviceOperations(ctx context.Context, deviceID string) ([]Operation, error)
	ExecuteOperation(ctx context.Context, deviceID, name string) error
}

// Hub is everything the controller consumes from the hub daemon.
type Hub interface {
	SnapshotReader
	SessionService
	BufferService
	DeviceTransport
}

// Ensure Client implements Hub at compile time.
var _ Hub = (*Client)(nil)

// Client talks to the hub HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultHubAddr   = "127.0.0.1:7620"
	defaultUserAgent = "sessionctl/0.1"
	requestTimeout   = 5 * time.Second
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hub %s returned status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("hub %s returned status %d", e.Path, e.Code)
}

// NewClient builds a Client using the provided host:port value.
func NewClient(addr string) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchSnapshot retrieves the live device and session state.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/live", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// StartSession asks the hub to open a session on behalf of initiatorID. A 409
// is decoded into a conflict *Disposition, any other 4xx into a rejected one.
func (c *Client) StartSession(ctx context.Context, initiatorID string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req := startRequest{InitiatorID: strings.TrimSpace(initiatorID)}
	err := c.do(ctx, http.MethodPost, "/api/session/start", req, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	switch {
	case statusErr.Code == http.StatusConflict:
		var conflict conflictPayload
		if jsonErr := json.Unmarshal([]byte(statusErr.Message), &conflict); jsonErr != nil || conflict.ActiveID == "" {
			return fmt.Errorf("decode conflict: %w", err)
		}
		return Conflict(conflict.ActiveID, conflict.StartedAt)
	case statusErr.Code >= 400 && statusErr.Code < 500:
		var body errorPayload
		reason := statusErr.Message
		if json.Unmarshal([]byte(statusErr.Message), &body) == nil && body.Error != "" {
			reason = body.Error
		}
		return &Disposition{Kind: DispositionRejected, Reason: reason}
	default:
		return err
	}
}

// ResumeConflictingSession adopts the session that blocked the last start.
func (c *Client) ResumeConflictingSession(ctx context.Context) error {
	return c.post(ctx, "/api/session/resume-conflicting", nil)
}

// EndConflictingAndStartNew ends the blocking session and starts a fresh one.
func (c *Client) EndConflictingAndStartNew(ctx context.Context) error {
	return c.post(ctx, "/api/session/replace-conflicting", nil)
}

// CancelPendingConflict drops the hub's pending conflict record.
func (c *Client) CancelPendingConflict(ctx context.Context) error {
	return c.post(ctx, "/api/session/cancel-conflict", nil)
}

// EndActiveSession ends the current session.
func (c *Client) EndActiveSession(ctx context.Context) error {
	return c.post(ctx, "/api/session/end", nil)
}

// CheckForActiveSession asks the hub to re-query the backend for a session.
func (c *Client) CheckForActiveSession(ctx context.Context) error {
	return c.post(ctx, "/api/session/check", nil)
}

// SetSessionMode toggles whether streaming devices are grouped into sessions.
func (c *Client) SetSessionMode(ctx context.Context, enabled bool) error {
	return c.post(ctx, "/api/session/mode", enabledRequest{Enabled: enabled})
}

// BufferStats retrieves aggregate buffer counters.
func (c *Client) BufferStats(ctx context.Context) (BufferStats, error) {
	if c == nil {
		return BufferStats{}, fmt.Errorf("client is nil")
	}
	var payload BufferStats
	if err := c.do(ctx, http.MethodGet, "/api/buffer/stats", nil, &payload); err != nil {
		return BufferStats{}, err
	}
	return payload, nil
}

// UploadStats retrieves per-device upload counters.
func (c *Client) UploadStats(ctx context.Context) (map[string]UploadStats, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	payload := map[string]UploadStats{}
	if err := c.do(ctx, http.MethodGet, "/api/buffer/uploads", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ResetFailedPackets moves failed packets back to pending and returns how many
// were re-queued. An empty deviceID resets every device.
func (c *Client) ResetFailedPackets(ctx context.Context, deviceID string) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("client is nil")
	}
	var payload countResponse
	if err := c.do(ctx, http.MethodPost, "/api/buffer/reset-failed", deviceRequest{DeviceID: deviceID}, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

// ClearBuffer deletes the hub's buffer store.
func (c *Client) ClearBuffer(ctx context.Context) error {
	return c.post(ctx, "/api/buffer/clear", nil)
}

// StartScan begins device discovery.
func (c *Client) StartScan(ctx context.Context) error {
	return c.post(ctx, "/api/scan/start", nil)
}

// StopScan ends device discovery.
func (c *Client) StopScan(ctx context.Context) error {
	return c.post(ctx, "/api/scan/stop", nil)
}

// Connect asks the hub to connect a device.
func (c *Client) Connect(ctx context.Context, deviceID string) error {
	return c.post(ctx, devicePath(deviceID, "connect"), nil)
}

// Disconnect asks the hub to drop a device.
func (c *Client) Disconnect(ctx context.Context, deviceID string) error {
	return c.post(ctx, devicePath(deviceID, "disconnect"), nil)
}

// DisconnectAll drops every device.
func (c *Client) DisconnectAll(ctx context.Context) error {
	return c.post(ctx, "/api/devices/disconnect-all", nil)
}

// SetAutoStream toggles whether a device streams as soon as it is ready.
func (c *Client) SetAutoStream(ctx context.Context, deviceID string, enabled bool) error {
	return c.post(ctx, devicePath(deviceID, "auto-stream"), enabledRequest{Enabled: enabled})
}

// StartStreaming starts streaming on one device, or all when deviceID is empty.
func (c *Client) StartStreaming(ctx context.Context, deviceID string) error {
	return c.post(ctx, "/api/stream/start", deviceRequest{DeviceID: deviceID})
}

// StopStreaming stops streaming on one device, or all when deviceID is empty.
func (c *Client) StopStreaming(ctx context.Context, deviceID string) error {
	return c.post(ctx, "/api/stream/stop", deviceRequest{DeviceID: deviceID})
}

// DeviceOperations lists the operations a device advertises.
func (c *Client) DeviceOperations(ctx context.Context, deviceID string) ([]Operation, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload operationsResponse
	if err := c.do(ctx, http.MethodGet, devicePath(deviceID, "operations"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Operations, nil
}

// ExecuteOperation runs a named device operation.
func (c *Client) ExecuteOperation(ctx context.Context, deviceID, name string) error {
	return c.post(ctx, devicePath(deviceID, "operations")+"/"+url.PathEscape(name), nil)
}

func devicePath(deviceID, action string) string {
	return "/api/devices/" + url.PathEscape(deviceID) + "/" + action
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		trimmed = defaultHubAddr
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse hub_addr %q: %w", addr, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
