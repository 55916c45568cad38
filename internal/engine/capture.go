package engine

import (
	"context"
	"sync"

	"github.com/duetly/api/internal/model"
)

// CaptureProfile is the fixed target requested from the device platform on
// every acquisition: resolution, frame rate and audio processing flags.
type CaptureProfile struct {
	Width            int
	Height           int
	FrameRate        int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// StreamHandle is an acquired camera+microphone feed. Chunks delivers encoded
// fragments at short, regular intervals until the handle is released. The
// handle is exclusively owned by the active recording session.
type StreamHandle struct {
	ID      string
	Profile CaptureProfile
	Chunks  <-chan []byte
}

// Platform is the device capture collaborator: it hands out stream handles
// for a target profile and takes them back. Implementations classify every
// acquisition failure as a *DeviceError, and must close the handle's chunk
// channel on Release so consumers drain cleanly.
type Platform interface {
	Acquire(ctx context.Context, profile CaptureProfile) (*StreamHandle, error)
	Release(handle *StreamHandle)
}

// CaptureManager scopes one device acquisition to one recording session.
// Release is idempotent and guaranteed on every exit path; the acquire and
// release counters let callers verify the pairing.
type CaptureManager struct {
	platform Platform
	profile  CaptureProfile

	mu       sync.Mutex
	handle   *StreamHandle
	acquires int
	releases int
}

// NewCaptureManager creates a manager that acquires from platform with a
// fixed profile.
func NewCaptureManager(platform Platform, profile CaptureProfile) *CaptureManager {
	return &CaptureManager{platform: platform, profile: profile}
}

// Acquire requests the camera+microphone handle. It fails with *DeviceError
// when the platform cannot satisfy the profile, and with DeviceBusy when a
// handle is already held.
func (m *CaptureManager) Acquire(ctx context.Context) (*StreamHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return nil, NewDeviceError(model.DeviceBusy, nil)
	}

	handle, err := m.platform.Acquire(ctx, m.profile)
	if err != nil {
		return nil, err
	}

	m.handle = handle
	m.acquires++
	return handle, nil
}

// Release returns the current handle to the platform. Calling it without a
// held handle is a no-op.
func (m *CaptureManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return
	}
	m.platform.Release(m.handle)
	m.handle = nil
	m.releases++
}

// Handle returns the currently held stream handle, or nil.
func (m *CaptureManager) Handle() *StreamHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// AcquireCount returns how many acquisitions succeeded over the manager's lifetime.
func (m *CaptureManager) AcquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires
}

// ReleaseCount returns how many releases were performed over the manager's lifetime.
func (m *CaptureManager) ReleaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}
