package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

// Phase is the controller's position in the press/release cycle.
type Phase int

const (
	Idle Phase = iota
	Recording
	Processing
	Ready
	Failed
)

var phaseNames = [...]string{"idle", "recording", "processing", "ready", "failed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether the phase ends a cycle.
func (p Phase) Terminal() bool {
	return p == Ready || p == Failed
}

// Status messages shown for each phase.
const (
	MessageIdle       = "Hold to record"
	MessageRecording  = "Recording..."
	MessageProcessing = "Recording stopped, sending audio..."
	// MessageSendFailed is shown when the remote server could not be
	// reached or did not answer in time.
	MessageSendFailed = "Failed to send audio"
)

// State is a snapshot of the controller.
type State struct {
	Phase Phase
	// ID names the press/release cycle. Empty while Idle before the first
	// press.
	ID string
	// Result is set in Ready.
	Result *classify.Result
	// Err is set in Failed.
	Err *classify.Error
	// Recording is the captured audio, once stopped.
	Recording *pcm.Recording
	// Backend is the name of the classifying backend.
	Backend string
	// At is when the phase was entered.
	At time.Time
}

// Kind returns the failure kind, or zero outside Failed.
func (s State) Kind() classify.Kind {
	if s.Err == nil {
		return 0
	}
	return s.Err.Kind
}

// Message is the user-facing status line.
func (s State) Message() string {
	switch s.Phase {
	case Idle:
		return MessageIdle
	case Recording:
		return MessageRecording
	case Processing:
		return MessageProcessing
	case Ready:
		if s.Result == nil {
			return "Ready"
		}
		return s.Result.String()
	case Failed:
		switch s.Kind() {
		case classify.BackendUnavailable, classify.NetworkTimeout:
			if s.Backend == classify.RemoteName {
				return MessageSendFailed
			}
		}
		return "Failed: " + s.Kind().String()
	}
	return s.Phase.String()
}

type stateJSON struct {
	Phase    Phase            `json:"phase"`
	ID       string           `json:"id,omitempty"`
	Message  string           `json:"message"`
	Result   *classify.Result `json:"result,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Error    string           `json:"error,omitempty"`
	Backend  string           `json:"backend,omitempty"`
	Duration float64          `json:"duration,omitempty"`
	At       time.Time        `json:"at"`
}

// MarshalJSON renders the state for UI clients. The recording is reduced
// to its duration in seconds.
func (s State) MarshalJSON() ([]byte, error) {
	v := stateJSON{
		Phase:    s.Phase,
		ID:       s.ID,
		Message:  s.Message(),
		Result:   s.Result,
		Backend:  s.Backend,
		Duration: s.Recording.Duration().Seconds(),
		At:       s.At,
	}
	if s.Err != nil {
		v.Kind = s.Err.Kind.String()
		v.Error = s.Err.Error()
	}
	return json.Marshal(v)
}
