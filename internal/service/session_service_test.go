package service

import (
	"context"
	"sync"
	"testing"

	"github.com/duetly/api/internal/config"
	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/websocket"
)

func testServiceConfig() *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{
			Enabled:   true,
			Width:     1280,
			Height:    720,
			FrameRate: 30,
		},
		Session: config.SessionConfig{
			TickIntervalMs:   20,
			RetentionMinutes: 30,
		},
	}
}

func newTestService() *SessionService {
	hub := websocket.NewHub()
	go hub.Run()
	return NewSessionService(testServiceConfig(), nil, hub, nil)
}

func openRequest() *model.OpenSessionRequest {
	return &model.OpenSessionRequest{
		Original: model.OriginalVideoRef{
			ID:            "orig-1",
			SourceURL:     "https://videos.example.com/orig-1.mp4",
			DurationMs:    60000,
			CreatorID:     "creator-1",
			CreatorHandle: "dancequeen",
		},
		Style: model.StyleSideBySide,
		Capture: model.CaptureReport{
			Permission: model.PermissionGranted,
			HasCamera:  true,
			HasMic:     true,
		},
	}
}

func TestOpenEnforcesOneSessionPerUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	snap, err := svc.Open(ctx, "user-1", openRequest())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}

	_, err = svc.Open(ctx, "user-1", openRequest())
	de, ok := engine.AsDeviceError(err)
	if !ok || de.Code != model.DeviceBusy {
		t.Fatalf("expected device_busy for second open, got %v", err)
	}

	if err := svc.Close(ctx, "user-1", snap.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	snap2, err := svc.Open(ctx, "user-1", openRequest())
	if err != nil {
		t.Fatalf("open after close failed: %v", err)
	}
	svc.Close(ctx, "user-1", snap2.ID)
}

func TestConcurrentOpensAdmitExactlyOne(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		const racers = 4
		start := make(chan struct{})
		var wg sync.WaitGroup
		var mu sync.Mutex
		var opened []string
		var busy int

		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				snap, err := svc.Open(ctx, "user-1", openRequest())
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					opened = append(opened, snap.ID)
					return
				}
				if de, ok := engine.AsDeviceError(err); ok && de.Code == model.DeviceBusy {
					busy++
					return
				}
				t.Errorf("unexpected open error: %v", err)
			}()
		}
		close(start)
		wg.Wait()

		if len(opened) != 1 || busy != racers-1 {
			t.Fatalf("iteration %d: %d sessions opened for one user (%d busy)", i, len(opened), busy)
		}
		if err := svc.Close(ctx, "user-1", opened[0]); err != nil {
			t.Fatalf("iteration %d: close failed: %v", i, err)
		}
	}
}

func TestOpenFailureReleasesUserReservation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	denied := openRequest()
	denied.Capture.Permission = model.PermissionDenied
	_, err := svc.Open(ctx, "user-1", denied)
	de, ok := engine.AsDeviceError(err)
	if !ok || de.Code != model.DevicePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}

	// A failed open must not leave the user locked out.
	snap, err := svc.Open(ctx, "user-1", openRequest())
	if err != nil {
		t.Fatalf("open after failed open was refused: %v", err)
	}
	svc.Close(ctx, "user-1", snap.ID)
}
