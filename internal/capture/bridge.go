// Package capture bridges remote recording clients to the engine's capture
// platform. The browser performs the actual getUserMedia acquisition and
// streams encoded fragments over a WebSocket; the bridge turns that into
// engine.StreamHandle semantics with explicit device error classification.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
	"github.com/google/uuid"
)

// chunkBuffer absorbs network jitter between the ingest socket and the
// pipeline pump.
const chunkBuffer = 64

// Bridge implements engine.Platform for one recording client. The client's
// capture report (permission state, device presence) is validated at acquire
// time; permission is never cached across sessions.
type Bridge struct {
	report  model.CaptureReport
	enabled bool

	mu     sync.Mutex
	feeds  map[string]chan []byte
	closed bool
}

// NewBridge creates a bridge for a client with the given capture report.
// When enabled is false every acquisition fails with a no_device error
// (capture disabled by configuration).
func NewBridge(report model.CaptureReport, enabled bool) *Bridge {
	return &Bridge{
		report:  report,
		enabled: enabled,
		feeds:   make(map[string]chan []byte),
	}
}

// Acquire validates the client's device availability against the requested
// profile and opens a chunk feed for the handle.
func (b *Bridge) Acquire(_ context.Context, profile engine.CaptureProfile) (*engine.StreamHandle, error) {
	if !b.enabled {
		return nil, engine.NewDeviceError(model.DeviceNotFound, fmt.Errorf("capture disabled"))
	}

	switch b.report.Permission {
	case model.PermissionGranted:
	case model.PermissionDenied:
		return nil, engine.NewDeviceError(model.DevicePermissionDenied, fmt.Errorf("camera/microphone permission denied"))
	default:
		return nil, engine.NewDeviceError(model.DevicePermissionDenied, fmt.Errorf("camera/microphone permission not granted"))
	}
	if !b.report.HasCamera || !b.report.HasMic {
		return nil, engine.NewDeviceError(model.DeviceNotFound, fmt.Errorf("no usable camera/microphone"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, engine.NewDeviceError(model.DeviceUnknown, fmt.Errorf("bridge closed"))
	}

	id := uuid.New().String()
	feed := make(chan []byte, chunkBuffer)
	b.feeds[id] = feed

	return &engine.StreamHandle{
		ID:      id,
		Profile: profile,
		Chunks:  feed,
	}, nil
}

// Release closes the handle's chunk feed, ending its pipeline pump.
func (b *Bridge) Release(handle *engine.StreamHandle) {
	if handle == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	feed, ok := b.feeds[handle.ID]
	if !ok {
		return
	}
	delete(b.feeds, handle.ID)
	close(feed)
}

// Push delivers one encoded fragment from the ingest socket into the handle's
// feed. Fragments for released handles are dropped; a full feed drops the
// fragment rather than blocking the socket reader.
func (b *Bridge) Push(handleID string, fragment []byte) bool {
	b.mu.Lock()
	feed, ok := b.feeds[handleID]
	b.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case feed <- fragment:
		return true
	default:
		return false
	}
}

// ActiveHandles returns the number of live feeds.
func (b *Bridge) ActiveHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

// Close releases every outstanding feed and rejects further acquisitions.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, feed := range b.feeds {
		delete(b.feeds, id)
		close(feed)
	}
}
