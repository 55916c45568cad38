package engine

import (
	"fmt"
	"sync"

	"github.com/duetly/api/internal/model"
)

// Mixer holds the selected audio source mode and independent gain levels for
// the microphone and original tracks. It is a policy container, not an audio
// stream: the exporter reads it at assembly time and live monitoring listens
// for changes. Mode-change gating against the session lifecycle lives in the
// session, not here.
type Mixer struct {
	mu        sync.Mutex
	state     model.MixState
	listeners []func(model.MixState)
}

// NewMixer returns a mixer with both tracks audible at full gain.
func NewMixer(mode model.AudioSourceMode) *Mixer {
	return &Mixer{
		state: model.MixState{
			Mode:         mode,
			MicGain:      100,
			OriginalGain: 100,
		},
	}
}

// State returns a copy of the current mix policy.
func (m *Mixer) State() model.MixState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the current audio source mode.
func (m *Mixer) Mode() model.AudioSourceMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Mode
}

// SetMode switches the audio source mode.
func (m *Mixer) SetMode(mode model.AudioSourceMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("invalid audio source mode %q", mode)
	}
	m.mu.Lock()
	m.state.Mode = mode
	state := m.state
	m.mu.Unlock()
	m.notify(state)
	return nil
}

// SetMicGain sets the microphone track gain (0..100).
func (m *Mixer) SetMicGain(gain int) error {
	if gain < 0 || gain > 100 {
		return fmt.Errorf("mic gain %d out of range 0..100", gain)
	}
	m.mu.Lock()
	m.state.MicGain = gain
	state := m.state
	m.mu.Unlock()
	m.notify(state)
	return nil
}

// SetOriginalGain sets the original track gain (0..100).
func (m *Mixer) SetOriginalGain(gain int) error {
	if gain < 0 || gain > 100 {
		return fmt.Errorf("original gain %d out of range 0..100", gain)
	}
	m.mu.Lock()
	m.state.OriginalGain = gain
	state := m.state
	m.mu.Unlock()
	m.notify(state)
	return nil
}

// SetMicMuted mutes or unmutes the microphone track.
func (m *Mixer) SetMicMuted(muted bool) {
	m.mu.Lock()
	m.state.MicMuted = muted
	state := m.state
	m.mu.Unlock()
	m.notify(state)
}

// SetOriginalMuted mutes or unmutes the original track.
func (m *Mixer) SetOriginalMuted(muted bool) {
	m.mu.Lock()
	m.state.OriginalMuted = muted
	state := m.state
	m.mu.Unlock()
	m.notify(state)
}

// Subscribe registers a listener invoked after every mix change.
func (m *Mixer) Subscribe(fn func(model.MixState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Mixer) notify(state model.MixState) {
	m.mu.Lock()
	listeners := make([]func(model.MixState), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
