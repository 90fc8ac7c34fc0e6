package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/session"
)

// Device is a registry entry as shown to presentation code.
type Device struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Connection hub.ConnectionState `json:"connection"`
	Stream     hub.StreamState     `json:"stream"`
	Battery    *int                `json:"battery,omitempty"`
	AutoStream bool                `json:"autoStream"`
	Included   bool                `json:"included"`
	Eligible   bool                `json:"eligible"`
}

// Session is the lifecycle machine's observable state.
type Session struct {
	Phase        session.Phase       `json:"phase"`
	ID           string              `json:"id,omitempty"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	Devices      []hub.SessionDevice `json:"devices,omitempty"`
	Participants []string            `json:"participants,omitempty"`
	Conflict     *session.Conflict   `json:"conflict,omitempty"`
	Busy         bool                `json:"busy"`
	Status       string              `json:"status,omitempty"`
	LastError    string              `json:"lastError,omitempty"`
	Confirm      []string            `json:"confirm,omitempty"`
	CanStart     bool                `json:"canStart"`
	Initiator    string              `json:"initiator,omitempty"`
	Mode         bool                `json:"sessionMode"`
}

// View represents the latest controller state available to presentation.
type View struct {
	Devices  []Device             `json:"devices"`
	Session  Session              `json:"session"`
	Buffer   diagnostics.Snapshot `json:"buffer"`
	Scanning bool                 `json:"scanning"`
	// Notice is the last failed device or mode intent.
	Notice string `json:"notice,omitempty"`

	LastUpdated         time.Time `json:"lastUpdated"`
	LastError           error     `json:"-"`
	ConsecutiveFailures int       `json:"consecutiveFailures"` // Number of consecutive poll failures
}

// IsOffline returns true when the hub has been unreachable for multiple polls.
func (v View) IsOffline() bool {
	return v.ConsecutiveFailures >= 2
}

// Eligible returns the devices whose connection state permits a session.
func (v View) Eligible() []Device {
	var out []Device
	for _, d := range v.Devices {
		if d.Eligible {
			out = append(out, d)
		}
	}
	return out
}

// Discovered returns devices a scan found that were never connected.
func (v View) Discovered() []Device {
	var out []Device
	for _, d := range v.Devices {
		if d.Connection == hub.ConnDiscovered {
			out = append(out, d)
		}
	}
	return out
}

// Connections returns the number of devices able to join a session.
func (v View) Connections() int {
	return len(v.Eligible())
}

// Roster is the device list to show next to the session: the frozen
// participants while a session exists, otherwise the eligible devices.
func (v View) Roster() []Device {
	if v.Session.ID != "" {
		return v.Participants()
	}
	return v.Eligible()
}

// Participants resolves the frozen session participants to devices. Ids the
// registry no longer reports are skipped.
func (v View) Participants() []Device {
	byID := make(map[string]Device, len(v.Devices))
	for _, d := range v.Devices {
		byID[d.ID] = d
	}
	out := make([]Device, 0, len(v.Session.Participants))
	for _, id := range v.Session.Participants {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Store coordinates concurrent access to the view. The controller loop is the
// only writer.
type Store struct {
	mu   sync.RWMutex
	view View
}

// Publish replaces the controller state. Poll health fields are kept.
func (s *Store) Publish(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v = v.clone()
	v.LastUpdated = s.view.LastUpdated
	v.LastError = s.view.LastError
	v.ConsecutiveFailures = s.view.ConsecutiveFailures
	s.view = v
}

// RecordPoll records the outcome of one snapshot read. When err is non-nil the
// previous data is kept but the error is recorded for visibility.
func (s *Store) RecordPoll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.LastUpdated = time.Now()
	if err != nil {
		s.view.LastError = err
		s.view.ConsecutiveFailures++
		return
	}
	s.view.LastError = nil
	s.view.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current view.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.view.clone()
	if s.view.LastError != nil {
		v.LastError = fmt.Errorf("%w", s.view.LastError)
	}
	return v
}

func (v View) clone() View {
	v.Devices = cloneDevices(v.Devices)
	v.Session.Devices = slices.Clone(v.Session.Devices)
	v.Session.Participants = slices.Clone(v.Session.Participants)
	v.Session.Confirm = slices.Clone(v.Session.Confirm)
	if v.Session.StartedAt != nil {
		t := *v.Session.StartedAt
		v.Session.StartedAt = &t
	}
	if v.Session.Conflict != nil {
		c := *v.Session.Conflict
		v.Session.Conflict = &c
	}
	v.Buffer = v.Buffer.Clone()
	return v
}

func cloneDevices(items []Device) []Device {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Device, len(items))
	copy(dup, items)
	for i := range dup {
		if dup[i].Battery != nil {
			b := *dup[i].Battery
			dup[i].Battery = &b
		}
	}
	return dup
}
