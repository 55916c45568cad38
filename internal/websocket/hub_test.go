package websocket

import (
	"testing"
	"time"

	"github.com/duetly/api/internal/model"
)

func sendClosed(c *Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestClientSendAfterCloseDoesNotPanic(t *testing.T) {
	client := &Client{SessionID: "s-1", Send: make(chan []byte, 1)}

	client.closeSend()
	if client.trySend([]byte(`{"type":"pong"}`)) {
		t.Error("expected send to be refused after close")
	}
	// Closing again is a no-op.
	client.closeSend()
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := &Client{SessionID: "s-1", Send: make(chan []byte, 1)}
	h.Register(client)

	// Fill the buffer so the next broadcast finds the client too slow.
	if !client.trySend([]byte("backlog")) {
		t.Fatal("failed to fill send buffer")
	}
	h.BroadcastState("s-1", model.SessionRecording, 100)

	deadline := time.Now().Add(2 * time.Second)
	for !sendClosed(client) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !sendClosed(client) {
		t.Fatal("slow client was never dropped")
	}

	// The reader loop's pong path must see a refused send, not a panic.
	if client.trySend([]byte(`{"type":"pong"}`)) {
		t.Error("expected send to be refused after drop")
	}

	if msg := <-client.Send; string(msg) != "backlog" {
		t.Fatalf("unexpected buffered message %q", msg)
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}
}
