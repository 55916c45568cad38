package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/duetly/api/internal/model"
	"github.com/gofiber/contrib/websocket"
)

// Client represents a WebSocket client subscribed to one recording session
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a message for the writer. It reports false when the client
// is too slow to keep up or its send channel has already been closed, so the
// reader and broadcast paths can never panic on a closed channel.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Hub maintains active WebSocket connections, grouped by recording session.
// It carries state transitions, elapsed ticks, playback transport commands
// and publish results to the recorder UI.
type Hub struct {
	// Clients grouped by session ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to session subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	SessionID string
	Message   []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for session %s", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					client.closeSend()
					if len(clients) == 0 {
						delete(h.clients, client.SessionID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from session %s", client.SessionID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.SessionID]; ok {
				for client := range clients {
					if !client.trySend(msg.Message) {
						client.closeSend()
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastState announces a session state transition
func (h *Hub) BroadcastState(sessionID string, state model.SessionState, elapsedMs int64) {
	h.send(sessionID, model.WSStateMessage{
		Type:      model.WSMessageTypeState,
		SessionID: sessionID,
		State:     state,
		ElapsedMs: elapsedMs,
	})
}

// BroadcastTick carries elapsed-time progress while recording
func (h *Hub) BroadcastTick(sessionID string, elapsedMs, durationMs int64) {
	h.send(sessionID, model.WSTickMessage{
		Type:       model.WSMessageTypeTick,
		SessionID:  sessionID,
		ElapsedMs:  elapsedMs,
		DurationMs: durationMs,
	})
}

// BroadcastTransport commands the client's playback surface for the original video
func (h *Hub) BroadcastTransport(sessionID, command string) {
	h.send(sessionID, model.WSTransportMessage{
		Type:      model.WSMessageTypeTransport,
		SessionID: sessionID,
		Command:   command,
	})
}

// BroadcastComplete sends a publish completion message to session subscribers
func (h *Hub) BroadcastComplete(sessionID string, result interface{}) {
	h.send(sessionID, model.WSCompleteMessage{
		Type:      model.WSMessageTypeComplete,
		SessionID: sessionID,
		Result:    result,
	})
}

// BroadcastError sends an error message to session subscribers
func (h *Hub) BroadcastError(sessionID, code, message string) {
	h.send(sessionID, model.WSErrorMessage{
		Type:      model.WSMessageTypeError,
		SessionID: sessionID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(sessionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal ws message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		Message:   data,
	}
}

// HandleConnection handles a WebSocket subscriber connection
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string) {
	client := &Client{
		SessionID: sessionID,
		Conn:      c,
		Send:      make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.trySend(data)
		}
	}
}

// HandleIngest reads binary capture fragments from the recording client and
// forwards them through push until the socket closes or push reports the
// stream handle is gone.
func (h *Hub) HandleIngest(c *websocket.Conn, sessionID string, push func([]byte) bool) {
	for {
		msgType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Ingest error for session %s: %v", sessionID, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if !push(message) {
			// Handle released: the take ended or was retaken.
			c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream released"))
			return
		}
	}
}
