package registry

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/five82/sessionctl/internal/hub"
)

// ErrUnknownDevice is returned for ids the registry has never observed.
var ErrUnknownDevice = errors.New("unknown device")

// Device is one known peripheral as last observed in a snapshot.
type Device struct {
	ID         string
	Name       string
	Connection hub.ConnectionState
	Stream     hub.StreamState
	Battery    *int
	AutoStream bool
	// Included marks the device for the next session. It survives merges.
	Included bool
}

// Eligible reports whether the device may take part in a session.
func (d Device) Eligible() bool {
	return d.Connection.Eligible()
}

// Streaming reports whether the device is currently delivering data.
func (d Device) Streaming() bool {
	return d.Stream == hub.StreamStreaming
}

func (d Device) clone() Device {
	if d.Battery != nil {
		b := *d.Battery
		d.Battery = &b
	}
	return d
}

// Registry is the de-duplicated, name-sorted set of devices merged from
// successive snapshots. Devices are never removed by a merge. A Registry is
// not safe for concurrent use; the controller loop owns it.
type Registry struct {
	devices  []Device
	index    map[string]int
	eligible []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Merge folds a snapshot into the registry. Unknown ids become new devices
// included in sessions by default; known ids have every field overwritten
// except Included. Ids that are not UUIDs are skipped.
func (r *Registry) Merge(snap hub.Snapshot) {
	for id, name := range snap.DeviceNames {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		conn, ok := snap.ConnectionStates[id]
		if !ok {
			conn = hub.ConnDiscovered
		}
		stream, ok := snap.StreamStates[id]
		if !ok {
			stream = hub.StreamIdle
		}
		autoStream, ok := snap.AutoStream[id]
		if !ok {
			autoStream = true
		}
		var battery *int
		if pct, ok := snap.Battery[id]; ok {
			battery = &pct
		}

		if idx, ok := r.index[id]; ok {
			d := &r.devices[idx]
			d.Name = name
			d.Connection = conn
			d.Stream = stream
			d.Battery = battery
			d.AutoStream = autoStream
			continue
		}
		r.devices = append(r.devices, Device{
			ID:         id,
			Name:       name,
			Connection: conn,
			Stream:     stream,
			Battery:    battery,
			AutoStream: autoStream,
			Included:   true,
		})
		r.index[id] = len(r.devices) - 1
	}
	r.reindex()
}

// reindex re-sorts by case-insensitive name and recomputes the eligible view.
func (r *Registry) reindex() {
	sort.SliceStable(r.devices, func(i, j int) bool {
		a, b := strings.ToLower(r.devices[i].Name), strings.ToLower(r.devices[j].Name)
		if a != b {
			return a < b
		}
		return r.devices[i].ID < r.devices[j].ID
	})
	r.eligible = r.eligible[:0]
	for i, d := range r.devices {
		r.index[d.ID] = i
		if d.Eligible() {
			r.eligible = append(r.eligible, d.ID)
		}
	}
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (Device, bool) {
	idx, ok := r.index[id]
	if !ok {
		return Device{}, false
	}
	return r.devices[idx].clone(), true
}

// Devices returns a copy of every known device in display order.
func (r *Registry) Devices() []Device {
	return r.filter(func(Device) bool { return true })
}

// Eligible returns copies of devices whose connection state permits a session.
func (r *Registry) Eligible() []Device {
	out := make([]Device, 0, len(r.eligible))
	for _, id := range r.eligible {
		out = append(out, r.devices[r.index[id]].clone())
	}
	return out
}

// Candidates returns eligible devices that are marked for inclusion.
func (r *Registry) Candidates() []Device {
	out := r.Eligible()
	kept := out[:0]
	for _, d := range out {
		if d.Included {
			kept = append(kept, d)
		}
	}
	return kept
}

// Discovered returns devices seen by a scan but never connected.
func (r *Registry) Discovered() []Device {
	return r.filter(func(d Device) bool { return d.Connection == hub.ConnDiscovered })
}

// Lookup returns copies of the devices with the given ids, in id order.
// Unknown ids are skipped.
func (r *Registry) Lookup(ids []string) []Device {
	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		if idx, ok := r.index[id]; ok {
			out = append(out, r.devices[idx].clone())
		}
	}
	return out
}

// SetIncluded sets the session-inclusion flag. The caller enforces that no
// session is active.
func (r *Registry) SetIncluded(id string, included bool) error {
	idx, ok := r.index[id]
	if !ok {
		return ErrUnknownDevice
	}
	r.devices[idx].Included = included
	return nil
}

// SetAutoStream records an optimistic auto-stream change ahead of the next
// snapshot.
func (r *Registry) SetAutoStream(id string, enabled bool) error {
	idx, ok := r.index[id]
	if !ok {
		return ErrUnknownDevice
	}
	r.devices[idx].AutoStream = enabled
	return nil
}

// Reset forgets every device.
func (r *Registry) Reset() {
	r.devices = nil
	r.eligible = nil
	r.index = make(map[string]int)
}

func (r *Registry) filter(keep func(Device) bool) []Device {
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		if keep(d) {
			out = append(out, d.clone())
		}
	}
	return out
}
