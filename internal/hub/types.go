package hub

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionState mirrors the hub's per-device link state.
type ConnectionState string

const (
	ConnDiscovered              ConnectionState = "discovered"
	ConnConnecting              ConnectionState = "connecting"
	ConnDiscoveringCapabilities ConnectionState = "discovering_capabilities"
	ConnReady                   ConnectionState = "ready"
	ConnDisconnected            ConnectionState = "disconnected"
	ConnFailed                  ConnectionState = "failed"
)

// Eligible reports whether a device in this state may take part in a session.
func (c ConnectionState) Eligible() bool {
	switch c {
	case ConnReady, ConnConnecting, ConnDiscoveringCapabilities:
		return true
	default:
		return false
	}
}

// Label returns a short display label.
func (c ConnectionState) Label() string {
	switch c {
	case ConnDiscovered:
		return "Discovered"
	case ConnConnecting:
		return "Connecting"
	case ConnDiscoveringCapabilities:
		return "Discovering"
	case ConnReady:
		return "Ready"
	case ConnDisconnected:
		return "Disconnected"
	case ConnFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StreamState mirrors the hub's per-device data stream state.
type StreamState string

const (
	StreamIdle        StreamState = "idle"
	StreamStarting    StreamState = "starting"
	StreamStreaming   StreamState = "streaming"
	StreamStopping    StreamState = "stopping"
	StreamStalled     StreamState = "stalled"
	StreamUnsupported StreamState = "unsupported"
)

// Active reports whether the stream is running or about to run. Toggling an
// active stream stops it; toggling anything else starts it.
func (s StreamState) Active() bool {
	return s == StreamStreaming || s == StreamStarting
}

// Label returns a short display label.
func (s StreamState) Label() string {
	if s == "" {
		return "Idle"
	}
	str := string(s)
	return strings.ToUpper(str[:1]) + str[1:]
}

// SessionDevice describes a participant reported with the active session.
type SessionDevice struct {
	DeviceID string `json:"deviceId"`
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Snapshot mirrors /api/live: the latest values the hub holds for devices and
// the recording session. Empty strings stand for absent values.
type Snapshot struct {
	DeviceNames                 map[string]string          `json:"deviceNames"`
	ConnectionStates            map[string]ConnectionState `json:"connectionStates"`
	StreamStates                map[string]StreamState     `json:"streamStates"`
	Battery                     map[string]int             `json:"battery"`
	AutoStream                  map[string]bool            `json:"autoStream"`
	CurrentSessionID            string                     `json:"currentSessionId,omitempty"`
	SessionDevices              []SessionDevice            `json:"sessionDevices,omitempty"`
	ConflictingSessionID        string                     `json:"conflictingSessionId,omitempty"`
	ConflictingSessionStartedAt *time.Time                 `json:"conflictingSessionStartedAt,omitempty"`
	SessionError                string                     `json:"sessionError,omitempty"`
}

// DispositionKind tags why the hub refused a start request.
type DispositionKind string

const (
	// DispositionConflict means another session already holds the global slot.
	DispositionConflict DispositionKind = "conflict"
	// DispositionRejected means the hub refused the request outright.
	DispositionRejected DispositionKind = "rejected"
)

// Disposition is the error returned by StartSession when the hub declines.
type Disposition struct {
	Kind      DispositionKind
	ActiveID  string
	StartedAt time.Time
	Reason    string
}

func (d *Disposition) Error() string {
	switch d.Kind {
	case DispositionConflict:
		return fmt.Sprintf("session %s already active", d.ActiveID)
	default:
		if d.Reason != "" {
			return "start rejected: " + d.Reason
		}
		return "start rejected"
	}
}

// Conflict builds a conflict disposition.
func Conflict(activeID string, startedAt time.Time) *Disposition {
	return &Disposition{Kind: DispositionConflict, ActiveID: activeID, StartedAt: startedAt}
}

// Operation is a device-specific action the hub advertises, such as a
// calibration or a vibration test.
type Operation struct {
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Variant string `json:"buttonVariant,omitempty"`
	// ShowWhen restricts when the operation is offered. Only the
	// "streaming" key is understood.
	ShowWhen map[string]bool `json:"showWhen,omitempty"`
}

// Title returns Label, or Name when the hub sent no label.
func (o Operation) Title() string {
	if strings.TrimSpace(o.Label) != "" {
		return o.Label
	}
	return o.Name
}

// Offered reports whether the operation applies to a device whose stream is
// in state s.
func (o Operation) Offered(s StreamState) bool {
	want, ok := o.ShowWhen["streaming"]
	if !ok {
		return true
	}
	return want == (s == StreamStreaming)
}

// BufferStats mirrors /api/buffer/stats.
type BufferStats struct {
	TotalPackets int `json:"totalPackets"`
	TotalPending int `json:"totalPending"`
	TotalFailed  int `json:"totalFailed"`
}

// Uploaded returns the count of buffered packets no longer pending.
func (b BufferStats) Uploaded() int {
	if n := b.TotalPackets - b.TotalPending; n > 0 {
		return n
	}
	return 0
}

// UploadStats holds the per-device upload counters.
type UploadStats struct {
	SuccessCount  int `json:"successCount"`
	TotalAttempts int `json:"totalAttempts"`
}

// SuccessRate sums counters across devices and returns successes/attempts.
func SuccessRate(stats map[string]UploadStats) float64 {
	var ok, total int
	for _, s := range stats {
		ok += s.SuccessCount
		total += s.TotalAttempts
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

type startRequest struct {
	InitiatorID string `json:"initiatorId"`
}

type conflictPayload struct {
	ActiveID  string    `json:"activeId"`
	StartedAt time.Time `json:"startedAt"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type deviceRequest struct {
	DeviceID string `json:"deviceId,omitempty"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type operationsResponse struct {
	Operations []Operation `json:"operations"`
}

type countResponse struct {
	Count int `json:"count"`
}

// Message is the websocket envelope pushed by /api/live/ws.
type Message struct {
	Type    string   `json:"type"`
	Payload Snapshot `json:"payload"`
}

// MsgSnapshot is the only message type the controller consumes.
const MsgSnapshot = "snapshot"
