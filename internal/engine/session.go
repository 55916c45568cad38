package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duetly/api/internal/model"
	"github.com/google/uuid"
)

// DefaultTickInterval is the elapsed-time tick used when none is configured.
const DefaultTickInterval = 100 * time.Millisecond

// Event types emitted by a session.
const (
	EventState = "state"
	EventTick  = "tick"
	EventError = "error"
)

// Event is a session lifecycle notification: a state transition, an elapsed
// tick, or an error classification.
type Event struct {
	Type      string
	SessionID string
	State     model.SessionState
	ElapsedMs int64
	Code      string
	Message   string
}

// Config assembles a session's dependencies. The session owns all of them:
// the capture platform, the playback transport and the preview allocator are
// commanded only through the session, never independently.
type Config struct {
	ID       string
	UserID   string
	Original model.OriginalVideoRef
	Style    model.DuetStyle

	Platform  Platform
	Profile   CaptureProfile
	Transport Transport
	Allocator PreviewAllocator

	// TickInterval is the elapsed-time granularity; DefaultTickInterval when zero.
	TickInterval time.Duration
	// RetainSourceTracks keeps the raw mic track through assembly, which
	// unlocks audio mode changes after processing.
	RetainSourceTracks bool

	// Notify receives lifecycle events. May be nil. Called outside the
	// session lock.
	Notify func(Event)
}

// Session is the recording session state machine. It coordinates the capture
// manager, the playback controller and the encoding pipeline through a single
// mutex, so every transition is atomic with respect to ticks and chunk
// delivery: no tick can fire between pipeline-pause and playback-pause.
type Session struct {
	id       string
	userID   string
	original model.OriginalVideoRef
	style    model.DuetStyle
	tick     time.Duration

	capture  *CaptureManager
	playback *PlaybackController
	pipeline *Pipeline
	mixer    *Mixer
	preview  *Preview
	notify   func(Event)

	mu        sync.Mutex
	cond      *sync.Cond
	state     model.SessionState
	elapsedMs int64
	takeGen   int
	closed    bool
	errCode   string
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
	tickStop  chan struct{}
}

// Open acquires the capture device and constructs a session in the idle
// state with the original playback reset to the start. Acquisition failure is
// fatal: the error is returned and no session exists.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Original.DurationMs <= 0 {
		return nil, fmt.Errorf("original video duration must be positive")
	}

	capture := NewCaptureManager(cfg.Platform, cfg.Profile)
	handle, err := capture.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        cfg.ID,
		userID:    cfg.UserID,
		original:  cfg.Original,
		style:     cfg.Style,
		tick:      cfg.TickInterval,
		capture:   capture,
		playback:  NewPlaybackController(cfg.Transport),
		pipeline:  NewPipeline(cfg.RetainSourceTracks),
		mixer:     NewMixer(model.AudioBoth),
		preview:   NewPreview(cfg.Allocator, cfg.Original.CreatorHandle),
		notify:    cfg.Notify,
		state:     model.SessionIdle,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	s.cond = sync.NewCond(&s.mu)
	s.playback.Reset()
	go s.pumpChunks(handle)
	return s, nil
}

// pumpChunks drains one stream handle into the pipeline. The pipeline gates
// consumption, so fragments delivered while paused are dropped there. The
// pump ends when the platform closes the handle's chunk channel on release.
func (s *Session) pumpChunks(handle *StreamHandle) {
	for chunk := range handle.Chunks {
		s.pipeline.Append(chunk)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// Original returns the read-only duetted video reference.
func (s *Session) Original() model.OriginalVideoRef { return s.original }

// Style returns the immutable duet style chosen at open.
func (s *Session) Style() model.DuetStyle { return s.style }

// Mixer returns the audio mix controller. Mode changes must go through
// SetAudioMode, which enforces the post-processing lock.
func (s *Session) Mixer() *Mixer { return s.mixer }

// Preview returns the post-recording workflow.
func (s *Session) Preview() *Preview { return s.preview }

// Capture returns the capture manager, exposed for acquisition accounting.
func (s *Session) Capture() *CaptureManager { return s.capture }

// State returns the current session state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ElapsedMs returns the accumulated recording time. It only advances while
// the session is recording.
func (s *Session) ElapsedMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedMs
}

// Start begins the take: original playback starts, the pipeline arms, and
// the elapsed tick begins. Only legal from idle.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != model.SessionIdle {
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "start"}
	}
	if err := s.pipeline.Start(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.playback.Play()
	s.setStateLocked(model.SessionRecording)
	s.startTickLocked()
	s.mu.Unlock()

	s.emitState(model.SessionRecording)
	return nil
}

// Pause freezes the take: tick, pipeline consumption and original playback
// stop under one lock hold, so both sides freeze atomically.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != model.SessionRecording {
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "pause"}
	}
	s.stopTickLocked()
	s.pipeline.Pause()
	s.playback.Pause()
	s.setStateLocked(model.SessionPaused)
	s.mu.Unlock()

	s.emitState(model.SessionPaused)
	return nil
}

// Resume continues the take from the frozen elapsed time: no double counting,
// no gap.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != model.SessionPaused {
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "resume"}
	}
	s.pipeline.Resume()
	s.playback.Play()
	s.setStateLocked(model.SessionRecording)
	s.startTickLocked()
	s.mu.Unlock()

	s.emitState(model.SessionRecording)
	return nil
}

// Stop ends the take and hands off to artifact assembly. The automatic stop
// at the duration bound runs under the same lock as the tick, so a concurrent
// manual stop can never extend the recording past the bound.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != model.SessionRecording && s.state != model.SessionPaused {
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "stop"}
	}
	s.beginStopLocked()
	s.mu.Unlock()

	s.emitState(model.SessionStopping)
	go s.finalize()
	return nil
}

// beginStopLocked performs the Recording/Paused → Stopping side effects:
// tick stopped, playback paused, pipeline consumption ended, device released.
func (s *Session) beginStopLocked() {
	s.stopTickLocked()
	s.pipeline.Pause()
	s.playback.Pause()
	s.capture.Release()
	s.setStateLocked(model.SessionStopping)
}

// finalize runs Stopping → Processing → Complete: the pipeline assembles the
// artifact, the preview URL is allocated, and the workflow becomes visible.
func (s *Session) finalize() {
	s.mu.Lock()
	if s.closed || s.state != model.SessionStopping {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(model.SessionProcessing)
	elapsed := s.elapsedMs
	gen := s.takeGen
	s.mu.Unlock()
	s.emitState(model.SessionProcessing)

	data, count, err := s.pipeline.Finalize()
	if err != nil {
		s.failTake(gen, "encoder_failure", err.Error())
		return
	}

	artifact := &model.DuetArtifact{
		ID:              uuid.New().String(),
		Style:           s.style,
		AudioSourceMode: s.mixer.Mode(),
		DurationMs:      elapsed,
		SizeBytes:       int64(len(data)),
		ChunkCount:      count,
		AssembledAt:     time.Now(),
	}

	if err := s.preview.Show(context.Background(), s.id, artifact, data); err != nil {
		s.failTake(gen, "preview_failure", err.Error())
		return
	}

	s.mu.Lock()
	if s.closed || s.takeGen != gen || s.state != model.SessionProcessing {
		// A retake superseded this take while assembly was in flight.
		s.mu.Unlock()
		s.preview.Discard(context.Background())
		return
	}
	s.setStateLocked(model.SessionComplete)
	s.mu.Unlock()
	s.emitState(model.SessionComplete)
}

// failTake reports an assembly failure, unless a retake or close already
// superseded the take being finalized.
func (s *Session) failTake(gen int, code, message string) {
	s.mu.Lock()
	if s.closed || s.takeGen != gen || s.state != model.SessionProcessing {
		s.mu.Unlock()
		return
	}
	s.errCode = code
	s.errMsg = message
	s.setStateLocked(model.SessionError)
	s.mu.Unlock()

	s.emit(Event{Type: EventError, SessionID: s.id, State: model.SessionError, Code: code, Message: message})
	s.emitState(model.SessionError)
}

// Retake discards the take entirely, including any assembled artifact and its
// preview URL, then re-acquires the device, resets elapsed time and playback,
// and returns to idle. Legal from every state but idle: a take still being
// assembled is abandoned, and the finalize goroutine notices the superseded
// generation and drops its result.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case model.SessionRecording, model.SessionPaused, model.SessionStopping,
		model.SessionProcessing, model.SessionComplete, model.SessionError:
	default:
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "retake"}
	}

	s.takeGen++
	s.stopTickLocked()
	s.playback.Pause()
	s.pipeline.Discard()
	s.elapsedMs = 0
	s.errCode, s.errMsg = "", ""
	s.capture.Release()

	handle, err := s.capture.Acquire(ctx)
	if err != nil {
		s.setStateLocked(model.SessionError)
		if de, ok := AsDeviceError(err); ok {
			s.errCode = string(de.Code)
		} else {
			s.errCode = string(model.DeviceUnknown)
		}
		s.errMsg = err.Error()
		s.mu.Unlock()

		s.emitState(model.SessionError)
		return err
	}

	s.playback.Reset()
	s.setStateLocked(model.SessionIdle)
	s.mu.Unlock()

	s.preview.Discard(ctx)
	go s.pumpChunks(handle)
	s.emitState(model.SessionIdle)
	return nil
}

// ReportDeviceLost records a mid-take device failure. The session enters the
// error state and the only forward action is retake; resuming a broken stream
// risks a corrupt artifact.
func (s *Session) ReportDeviceLost(reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case model.SessionRecording, model.SessionPaused, model.SessionStopping, model.SessionProcessing:
	default:
		state := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: state, Op: "report device loss"}
	}
	s.mu.Unlock()

	if reason == "" {
		reason = "capture device lost"
	}
	s.toError(string(model.DeviceNotFound), reason)
	return nil
}

// toError transitions to the error state, releasing the device handle.
func (s *Session) toError(code, message string) {
	s.mu.Lock()
	if s.closed || s.state == model.SessionError {
		s.mu.Unlock()
		return
	}
	s.stopTickLocked()
	s.pipeline.Pause()
	s.playback.Pause()
	s.capture.Release()
	s.errCode = code
	s.errMsg = message
	s.setStateLocked(model.SessionError)
	s.mu.Unlock()

	s.emit(Event{Type: EventError, SessionID: s.id, State: model.SessionError, Code: code, Message: message})
	s.emitState(model.SessionError)
}

// Close tears the session down from any state: the device handle is released
// exactly once and the preview URL is invalidated. All later operations fail
// with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTickLocked()
	s.pipeline.Pause()
	s.playback.Pause()
	s.capture.Release()
	s.cond.Broadcast()
	s.mu.Unlock()

	s.preview.Discard(ctx)
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetAudioMode changes the audio source mode. Once the session has reached
// processing the assembled artifact is a single muxed stream, so the change
// is rejected with ErrMixLocked unless the pipeline retained source tracks.
func (s *Session) SetAudioMode(mode model.AudioSourceMode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	locked := (s.state == model.SessionProcessing || s.state == model.SessionComplete) &&
		!s.pipeline.RetainsSourceTracks()
	assembled := s.state == model.SessionComplete
	s.mu.Unlock()

	if locked {
		return ErrMixLocked
	}
	if err := s.mixer.SetMode(mode); err != nil {
		return err
	}
	if assembled {
		s.preview.SetAudioSourceMode(mode)
	}
	return nil
}

// Snapshot returns the externally visible view of the session.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.SessionSnapshot{
		ID:           s.id,
		UserID:       s.userID,
		State:        s.state,
		Style:        s.style,
		Original:     s.original,
		ElapsedMs:    s.elapsedMs,
		ChunkCount:   s.pipeline.ChunkCount(),
		Mix:          s.mixer.State(),
		Preview:      s.preview.State(),
		ErrorCode:    s.errCode,
		ErrorMessage: s.errMsg,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
		AcquireCount: s.capture.AcquireCount(),
	}
	if artifact := s.preview.Artifact(); artifact != nil {
		snap.HasArtifact = true
		snap.ArtifactMs = artifact.DurationMs
		snap.PreviewURL = artifact.PreviewURL
	}
	return snap
}

// WaitState blocks until the session reaches the given state, the session
// closes, or the context expires.
func (s *Session) WaitState(ctx context.Context, state model.SessionState) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state != state && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	if s.state == state {
		return nil
	}
	if s.closed {
		return ErrSessionClosed
	}
	return ctx.Err()
}

// setStateLocked records a transition; callers hold s.mu.
func (s *Session) setStateLocked(state model.SessionState) {
	s.state = state
	s.updatedAt = time.Now()
	s.cond.Broadcast()
}

// startTickLocked launches the elapsed-time ticker; callers hold s.mu.
func (s *Session) startTickLocked() {
	stop := make(chan struct{})
	s.tickStop = stop
	go s.runTicker(stop)
}

// stopTickLocked halts the ticker if one is running; callers hold s.mu.
func (s *Session) stopTickLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

func (s *Session) runTicker(stop chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.onTick() {
				return
			}
		}
	}
}

// onTick advances elapsed time by one interval and enforces the duration
// bound. The bound check runs under the session lock, so elapsed time at stop
// never exceeds the original duration by more than one tick interval.
func (s *Session) onTick() bool {
	s.mu.Lock()
	if s.state != model.SessionRecording {
		s.mu.Unlock()
		return false
	}
	s.elapsedMs += s.tick.Milliseconds()
	elapsed := s.elapsedMs
	if elapsed < s.original.DurationMs {
		s.mu.Unlock()
		s.emit(Event{Type: EventTick, SessionID: s.id, State: model.SessionRecording, ElapsedMs: elapsed})
		return true
	}

	// Duration bound reached: force-stop. This takes priority over any
	// concurrent manual stop, which would block on the same lock.
	s.tickStop = nil
	s.pipeline.Pause()
	s.playback.Pause()
	s.capture.Release()
	s.setStateLocked(model.SessionStopping)
	s.mu.Unlock()

	s.emit(Event{Type: EventTick, SessionID: s.id, State: model.SessionStopping, ElapsedMs: elapsed})
	s.emitState(model.SessionStopping)
	go s.finalize()
	return false
}

func (s *Session) emitState(state model.SessionState) {
	s.mu.Lock()
	elapsed := s.elapsedMs
	s.mu.Unlock()
	s.emit(Event{Type: EventState, SessionID: s.id, State: state, ElapsedMs: elapsed})
}

func (s *Session) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}
