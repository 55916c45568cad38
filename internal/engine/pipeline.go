package engine

import (
	"bytes"
	"fmt"
	"sync"
)

// Pipeline accumulates encoded fragments from the capture stream while the
// session is recording and assembles them into one binary artifact on stop.
// Pause gates consumption without inserting any boundary marker, so the
// assembled byte stream stays one continuous decodable recording no matter
// how many pause/resume cycles occurred.
type Pipeline struct {
	retainTracks bool

	mu        sync.Mutex
	started   bool
	consuming bool
	finalized bool
	chunks    [][]byte
	micTrack  [][]byte
}

// NewPipeline creates an idle pipeline. When retainTracks is set the raw
// microphone track is kept alongside the muxed chunks, which permits audio
// mode changes after assembly.
func NewPipeline(retainTracks bool) *Pipeline {
	return &Pipeline{retainTracks: retainTracks}
}

// Start begins consuming the given stream. The handle itself is drained by
// the session; Start only arms the pipeline.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline already started")
	}
	p.started = true
	p.consuming = true
	return nil
}

// Append records one encoded fragment. Fragments delivered while paused or
// after finalization are dropped: they belong to no recording interval.
func (p *Pipeline) Append(fragment []byte) {
	if len(fragment) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || !p.consuming || p.finalized {
		return
	}

	chunk := make([]byte, len(fragment))
	copy(chunk, fragment)
	p.chunks = append(p.chunks, chunk)
	if p.retainTracks {
		p.micTrack = append(p.micTrack, chunk)
	}
}

// Pause stops consumption. No marker is emitted into the chunk sequence.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consuming = false
}

// Resume continues consumption of the same logical recording.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && !p.finalized {
		p.consuming = true
	}
}

// Finalize stops consumption and assembles the accumulated chunks into the
// final artifact bytes. It may be called once; later Appends are dropped.
func (p *Pipeline) Finalize() ([]byte, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil, 0, fmt.Errorf("pipeline not started")
	}
	if p.finalized {
		return nil, 0, fmt.Errorf("pipeline already finalized")
	}
	p.finalized = true
	p.consuming = false

	var buf bytes.Buffer
	for _, chunk := range p.chunks {
		buf.Write(chunk)
	}
	return buf.Bytes(), len(p.chunks), nil
}

// Discard drops all accumulated data and returns the pipeline to idle, ready
// for a fresh take.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	p.consuming = false
	p.finalized = false
	p.chunks = nil
	p.micTrack = nil
}

// ChunkCount returns the number of fragments accumulated so far.
func (p *Pipeline) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

// RetainsSourceTracks reports whether the raw microphone track survives
// assembly, making post-recording audio mode changes possible.
func (p *Pipeline) RetainsSourceTracks() bool {
	return p.retainTracks
}

// MicTrack returns the retained raw microphone track, or nil when source
// tracks are not kept.
func (p *Pipeline) MicTrack() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.retainTracks || len(p.micTrack) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, chunk := range p.micTrack {
		buf.Write(chunk)
	}
	return buf.Bytes()
}
