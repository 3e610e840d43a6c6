package capture

import (
	"errors"
	"sync"
)

var errMicrophoneBusy = errors.New("microphone in use")

// Microphone arbitrates exclusive access to one physical input. Captures
// sharing a Microphone can never record at the same time.
type Microphone struct {
	mu    sync.Mutex
	owner *Capture
}

// NewMicrophone creates an unheld Microphone.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

// DefaultMicrophone is shared by Captures created without WithMicrophone.
var DefaultMicrophone = NewMicrophone()

// Busy reports whether a Capture holds the microphone.
func (m *Microphone) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != nil
}

func (m *Microphone) acquire(c *Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != nil {
		return errMicrophoneBusy
	}
	m.owner = c
	return nil
}

func (m *Microphone) release(c *Capture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == c {
		m.owner = nil
	}
}
