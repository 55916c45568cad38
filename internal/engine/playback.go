package engine

// Transport is the original video's playback surface. It never initiates
// transitions on its own; the session state machine is its only caller, which
// keeps original playback and capture phase-locked by construction.
type Transport interface {
	// Reset seeks to the start and leaves playback paused.
	Reset()
	Play()
	Pause()
}

// PlaybackController wraps a Transport and remembers whether playback is
// running, so redundant transport commands are suppressed.
type PlaybackController struct {
	transport Transport
	playing   bool
}

// NewPlaybackController wraps transport. The controller is commanded only by
// the recording session that owns it, so it needs no locking of its own.
func NewPlaybackController(transport Transport) *PlaybackController {
	return &PlaybackController{transport: transport}
}

// Reset seeks the original to zero, paused.
func (p *PlaybackController) Reset() {
	p.transport.Reset()
	p.playing = false
}

// Play starts original playback if it is not already running.
func (p *PlaybackController) Play() {
	if p.playing {
		return
	}
	p.transport.Play()
	p.playing = true
}

// Pause halts original playback if it is running.
func (p *PlaybackController) Pause() {
	if !p.playing {
		return
	}
	p.transport.Pause()
	p.playing = false
}

// Playing reports whether the original is currently playing.
func (p *PlaybackController) Playing() bool {
	return p.playing
}
