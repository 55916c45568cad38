package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/duetly/api/internal/capture"
	"github.com/duetly/api/internal/client"
	"github.com/duetly/api/internal/config"
	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/websocket"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no live session matches the ID.
var ErrSessionNotFound = fmt.Errorf("session not found")

// managedSession pairs a live engine session with its capture bridge and the
// stream handle ID currently accepting ingest.
type managedSession struct {
	session   *engine.Session
	bridge    *capture.Bridge
	lastTouch time.Time
}

// SessionService owns every live recording session in the process. Exactly
// one session is active per user; opening a second recorder while one is
// live fails with a device-busy error.
type SessionService struct {
	cfg     *config.Config
	redis   *redis.Client
	hub     *websocket.Hub
	storage client.StorageClient // nil → in-memory previews

	mu       sync.Mutex
	sessions map[string]*managedSession
	byUser   map[string]string
}

// NewSessionService creates the session registry.
func NewSessionService(cfg *config.Config, redisClient *redis.Client, hub *websocket.Hub, storage client.StorageClient) *SessionService {
	return &SessionService{
		cfg:      cfg,
		redis:    redisClient,
		hub:      hub,
		storage:  storage,
		sessions: make(map[string]*managedSession),
		byUser:   make(map[string]string),
	}
}

// Open acquires the capture device and creates a session for the user. On
// any device error no session exists afterwards.
func (s *SessionService) Open(ctx context.Context, userID string, req *model.OpenSessionRequest) (*model.SessionSnapshot, error) {
	// Check and reservation share one lock hold, so racing opens for the
	// same user cannot both pass the one-session-per-user gate.
	sessionID := uuid.New().String()
	s.mu.Lock()
	if existing, ok := s.byUser[userID]; ok {
		s.mu.Unlock()
		return nil, engine.NewDeviceError(model.DeviceBusy, fmt.Errorf("recorder already open (session %s)", existing))
	}
	s.byUser[userID] = sessionID
	s.mu.Unlock()

	bridge := capture.NewBridge(req.Capture, s.cfg.Capture.Enabled)

	sess, err := engine.Open(ctx, engine.Config{
		ID:       sessionID,
		UserID:   userID,
		Original: req.Original,
		Style:    req.Style,
		Platform: bridge,
		Profile: engine.CaptureProfile{
			Width:            s.cfg.Capture.Width,
			Height:           s.cfg.Capture.Height,
			FrameRate:        s.cfg.Capture.FrameRate,
			EchoCancellation: s.cfg.Capture.EchoCancellation,
			NoiseSuppression: s.cfg.Capture.NoiseSuppression,
			AutoGainControl:  s.cfg.Capture.AutoGainControl,
		},
		Transport:          &hubTransport{hub: s.hub, sessionID: sessionID},
		Allocator:          s.newAllocator(),
		TickInterval:       time.Duration(s.cfg.Session.TickIntervalMs) * time.Millisecond,
		RetainSourceTracks: s.cfg.Session.RetainSourceTracks,
		Notify:             s.makeNotify(sessionID, req.Original.DurationMs),
	})
	if err != nil {
		s.mu.Lock()
		if s.byUser[userID] == sessionID {
			delete(s.byUser, userID)
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = &managedSession{session: sess, bridge: bridge, lastTouch: time.Now()}
	s.mu.Unlock()

	snap := sess.Snapshot()
	s.saveSnapshot(ctx, &snap)
	log.Printf("Session %s opened for user %s (original %s)", sessionID, userID, req.Original.ID)
	return &snap, nil
}

// makeNotify forwards engine events to websocket subscribers and keeps the
// redis snapshot fresh on every state transition.
func (s *SessionService) makeNotify(sessionID string, durationMs int64) func(engine.Event) {
	return func(ev engine.Event) {
		switch ev.Type {
		case engine.EventTick:
			s.hub.BroadcastTick(sessionID, ev.ElapsedMs, durationMs)
		case engine.EventState:
			s.hub.BroadcastState(sessionID, ev.State, ev.ElapsedMs)
			s.persistCurrent(sessionID)
		case engine.EventError:
			s.hub.BroadcastError(sessionID, ev.Code, ev.Message)
		}
	}
}

// Get returns a snapshot of a live session owned by the user.
func (s *SessionService) Get(userID, sessionID string) (*model.SessionSnapshot, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	snap := ms.session.Snapshot()
	return &snap, nil
}

// Start begins the take.
func (s *SessionService) Start(userID, sessionID string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.Start() })
}

// Pause freezes the take.
func (s *SessionService) Pause(userID, sessionID string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.Pause() })
}

// Resume continues a paused take.
func (s *SessionService) Resume(userID, sessionID string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.Resume() })
}

// Stop ends the take and begins artifact assembly.
func (s *SessionService) Stop(userID, sessionID string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.Stop() })
}

// Retake discards the current take and returns the session to idle with a
// freshly acquired device handle.
func (s *SessionService) Retake(ctx context.Context, userID, sessionID string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.Retake(ctx) })
}

// ReportDeviceLost records a client-reported mid-take device failure.
func (s *SessionService) ReportDeviceLost(userID, sessionID, reason string) (*model.SessionSnapshot, error) {
	return s.transition(userID, sessionID, func(sess *engine.Session) error { return sess.ReportDeviceLost(reason) })
}

func (s *SessionService) transition(userID, sessionID string, op func(*engine.Session) error) (*model.SessionSnapshot, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := op(ms.session); err != nil {
		return nil, err
	}
	s.touch(sessionID)
	snap := ms.session.Snapshot()
	s.saveSnapshot(context.Background(), &snap)
	return &snap, nil
}

// Close cancels the recorder: the device handle is released exactly once,
// the preview URL is invalidated, and the session is forgotten.
func (s *SessionService) Close(ctx context.Context, userID, sessionID string) error {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}
	s.destroy(ctx, sessionID, ms)
	log.Printf("Session %s closed", sessionID)
	return nil
}

// destroy tears down a managed session and removes it from the registry.
func (s *SessionService) destroy(ctx context.Context, sessionID string, ms *managedSession) {
	ms.session.Close(ctx)
	ms.bridge.Close()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	if s.byUser[ms.session.UserID()] == sessionID {
		delete(s.byUser, ms.session.UserID())
	}
	s.mu.Unlock()

	if s.redis != nil {
		s.redis.Del(ctx, sessionKey(sessionID))
	}
}

// DestroyAfterPublish removes a session after a successful publish. Called
// by the publish worker; not an error if the session is already gone.
func (s *SessionService) DestroyAfterPublish(ctx context.Context, sessionID string) {
	s.mu.Lock()
	ms, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.destroy(ctx, sessionID, ms)
	log.Printf("Session %s destroyed after publish", sessionID)
}

// PushChunk forwards one ingest fragment into the session's capture bridge.
// Returns false when the stream handle has been released.
func (s *SessionService) PushChunk(sessionID string, fragment []byte) bool {
	s.mu.Lock()
	ms, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	handle := ms.session.Capture().Handle()
	if handle == nil {
		return false
	}
	return ms.bridge.Push(handle.ID, fragment)
}

// UpdateMix applies a partial mix update. Mode changes go through the
// session's post-processing lock.
func (s *SessionService) UpdateMix(userID, sessionID string, req *model.UpdateMixRequest) (*model.MixState, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	sess := ms.session
	if req.Mode != nil {
		if err := sess.SetAudioMode(*req.Mode); err != nil {
			return nil, err
		}
	}
	mixer := sess.Mixer()
	if req.MicGain != nil {
		if err := mixer.SetMicGain(*req.MicGain); err != nil {
			return nil, err
		}
	}
	if req.OriginalGain != nil {
		if err := mixer.SetOriginalGain(*req.OriginalGain); err != nil {
			return nil, err
		}
	}
	if req.MicMuted != nil {
		mixer.SetMicMuted(*req.MicMuted)
	}
	if req.OriginalMuted != nil {
		mixer.SetOriginalMuted(*req.OriginalMuted)
	}

	s.touch(sessionID)
	state := mixer.State()
	return &state, nil
}

// GetMix returns the current mix policy.
func (s *SessionService) GetMix(userID, sessionID string) (*model.MixState, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	state := ms.session.Mixer().State()
	return &state, nil
}

// GetPreview returns the post-recording workflow state.
func (s *SessionService) GetPreview(userID, sessionID string) (*model.PreviewResponse, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	preview := ms.session.Preview()
	return &model.PreviewResponse{
		State:    preview.State(),
		Artifact: preview.Artifact(),
		Metadata: preview.Metadata(),
	}, nil
}

// BackToEdit hides the preview without discarding the artifact or metadata.
func (s *SessionService) BackToEdit(userID, sessionID string) error {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}
	ms.session.Preview().Hide()
	s.touch(sessionID)
	return nil
}

// UpdateMetadata edits the pending duet's caption and tags.
func (s *SessionService) UpdateMetadata(userID, sessionID string, req *model.UpdateMetadataRequest) (*model.DuetMetadata, error) {
	ms, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	preview := ms.session.Preview()
	if req.Caption != nil {
		preview.SetCaption(*req.Caption)
	}
	if req.Tags != nil {
		preview.SetTags(*req.Tags)
	}
	s.touch(sessionID)
	md := preview.Metadata()
	return &md, nil
}

// Session returns the live engine session, for the publish worker.
func (s *SessionService) Session(sessionID string) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms.session, nil
}

// StartJanitor reaps sessions that have been idle past the retention window.
// Closing a reaped session follows the same teardown path as cancel, so the
// device handle and preview URL are still released exactly once.
func (s *SessionService) StartJanitor(ctx context.Context) {
	retention := time.Duration(s.cfg.Session.RetentionMinutes) * time.Minute
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reap(ctx, retention)
			}
		}
	}()
}

func (s *SessionService) reap(ctx context.Context, retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	var stale []*managedSession
	var staleIDs []string
	for id, ms := range s.sessions {
		state := ms.session.State()
		if ms.lastTouch.Before(cutoff) && state != model.SessionRecording {
			stale = append(stale, ms)
			staleIDs = append(staleIDs, id)
		}
	}
	s.mu.Unlock()

	for i, ms := range stale {
		log.Printf("Reaping idle session %s", staleIDs[i])
		s.destroy(ctx, staleIDs[i], ms)
	}
}

func (s *SessionService) lookup(userID, sessionID string) (*managedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if userID != "" && ms.session.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}

func (s *SessionService) touch(sessionID string) {
	s.mu.Lock()
	if ms, ok := s.sessions[sessionID]; ok {
		ms.lastTouch = time.Now()
	}
	s.mu.Unlock()
}

func (s *SessionService) persistCurrent(sessionID string) {
	s.mu.Lock()
	ms, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	snap := ms.session.Snapshot()
	s.saveSnapshot(context.Background(), &snap)
}

// saveSnapshot keeps an observability copy of the session in redis with the
// retention TTL. Redis being down never blocks the recorder.
func (s *SessionService) saveSnapshot(ctx context.Context, snap *model.SessionSnapshot) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ttl := time.Duration(s.cfg.Session.RetentionMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.redis.Set(ctx, sessionKey(snap.ID), data, ttl).Err(); err != nil {
		log.Printf("Failed to persist session %s snapshot: %v", snap.ID, err)
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// newAllocator returns the preview allocator: presigned object storage when
// configured, otherwise the in-memory fallback.
func (s *SessionService) newAllocator() engine.PreviewAllocator {
	if s.storage == nil {
		return engine.NewMemoryPreviews()
	}
	return &storageAllocator{storage: s.storage}
}

// hubTransport drives the client's playback surface for the original video
// over the session websocket. The session state machine is its only caller.
type hubTransport struct {
	hub       *websocket.Hub
	sessionID string
}

func (t *hubTransport) Reset() { t.hub.BroadcastTransport(t.sessionID, "reset") }
func (t *hubTransport) Play()  { t.hub.BroadcastTransport(t.sessionID, "play") }
func (t *hubTransport) Pause() { t.hub.BroadcastTransport(t.sessionID, "pause") }
