package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Phase is the lifecycle position of the single global session as seen from
// this controller.
type Phase int

const (
	Idle Phase = iota
	Starting
	Active
	Conflicted
	Ending
)

var phaseNames = map[Phase]string{
	Idle:       "idle",
	Starting:   "starting",
	Active:     "active",
	Conflicted: "conflicted",
	Ending:     "ending",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Transition records a phase change for logging.
type Transition struct {
	From Phase
	To   Phase
}

// Changed reports whether the phase moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Guard failures. They are returned synchronously and never change state.
var (
	ErrBusy              = errors.New("session request already in progress")
	ErrSessionActive     = errors.New("a session is already active")
	ErrConflictPending   = errors.New("a session conflict is awaiting a decision")
	ErrNoInitiator       = errors.New("no signed-in initiator")
	ErrNoEligibleDevices = errors.New("no eligible devices included")
	ErrNotConflicted     = errors.New("no session conflict to resolve")
	ErrNoSession         = errors.New("no active session")
	ErrNotStarting       = errors.New("no session start in progress")
	ErrSessionLocked     = errors.New("session membership is locked while a session is active")
)

// ConfirmationRequiredError is returned by RequestStart when included devices
// are not streaming. It is not a failure: repeating the request with override
// set proceeds.
type ConfirmationRequiredError struct {
	Devices []string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("devices not streaming: %s", strings.Join(e.Devices, ", "))
}
