package engine

import (
	"testing"

	"github.com/duetly/api/internal/model"
)

func TestMixerDefaults(t *testing.T) {
	m := NewMixer(model.AudioBoth)
	state := m.State()
	if state.Mode != model.AudioBoth {
		t.Errorf("expected both mode, got %s", state.Mode)
	}
	if state.MicGain != 100 || state.OriginalGain != 100 {
		t.Errorf("expected full gain defaults, got mic=%d original=%d", state.MicGain, state.OriginalGain)
	}
	if state.MicMuted || state.OriginalMuted {
		t.Error("expected both tracks unmuted")
	}
}

func TestMixerRejectsInvalidValues(t *testing.T) {
	m := NewMixer(model.AudioBoth)
	if err := m.SetMode("stereo"); err == nil {
		t.Error("expected unknown mode to be rejected")
	}
	if err := m.SetMicGain(101); err == nil {
		t.Error("expected out-of-range mic gain to be rejected")
	}
	if err := m.SetOriginalGain(-1); err == nil {
		t.Error("expected negative original gain to be rejected")
	}
	if m.Mode() != model.AudioBoth {
		t.Errorf("expected state unchanged after rejections, got %s", m.Mode())
	}
}

func TestMixerNotifiesListeners(t *testing.T) {
	m := NewMixer(model.AudioBoth)
	var seen []model.MixState
	m.Subscribe(func(state model.MixState) { seen = append(seen, state) })

	if err := m.SetMode(model.AudioOriginalOnly); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}
	m.SetMicMuted(true)

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0].Mode != model.AudioOriginalOnly {
		t.Errorf("expected first notification to carry the mode change, got %s", seen[0].Mode)
	}
	if !seen[1].MicMuted {
		t.Error("expected second notification to carry the mute")
	}
}
