package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SampleDeck/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// MessageType tags player feed messages.
type MessageType string

const MsgTypeState MessageType = "state"

// WSMessage is one frame of the player feed.
type WSMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client is one websocket subscriber.
type Client struct {
	ID   string
	Hub  *PlayerHub
	Conn *websocket.Conn
	Send chan []byte
}

// PlayerHub pushes the transport state to every connected client whenever it
// changes.
type PlayerHub struct {
	state    func() interface{}
	interval time.Duration

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	lastState  []byte
	last       []byte
}

// NewPlayerHub polls state every interval.
func NewPlayerHub(state func() interface{}, interval time.Duration) *PlayerHub {
	return &PlayerHub{
		state:      state,
		interval:   interval,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *PlayerHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			last := h.last
			h.mu.Unlock()
			if last != nil {
				h.deliver(client, last)
			}
			logger.Info("Player feed client connected", logger.String("client", client.ID))

		case client := <-h.unregister:
			h.remove(client)

		case <-ticker.C:
			h.poll()

		case <-ctx.Done():
			h.cleanup()
			return
		}
	}
}

// Register adds a client to the hub.
func (h *PlayerHub) Register(client *Client) { h.register <- client }

// Unregister removes a client from the hub.
func (h *PlayerHub) Unregister(client *Client) { h.unregister <- client }

// ClientCount returns the number of connected clients.
func (h *PlayerHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// poll broadcasts the state when it differs from the last broadcast.
func (h *PlayerHub) poll() {
	state, err := json.Marshal(h.state())
	if err != nil {
		logger.Error("Failed to encode player state", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	if bytes.Equal(state, h.lastState) {
		h.mu.Unlock()
		return
	}
	data, _ := json.Marshal(WSMessage{
		Type:      MsgTypeState,
		Data:      json.RawMessage(state),
		Timestamp: time.Now().UnixMilli(),
	})
	h.lastState = state
	h.last = data
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.deliver(client, data)
	}
}

// deliver drops a client whose send buffer is full.
func (h *PlayerHub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.remove(client)
	}
}

func (h *PlayerHub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Info("Player feed client disconnected", logger.String("client", client.ID))
	}
}

func (h *PlayerHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
		delete(h.clients, client)
	}
}

// ReadPump discards client frames and unregisters the client when the
// connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-ctx.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read error",
					logger.String("client", c.ID),
					logger.ErrorField(err))
			}
			return
		}
	}
}

// WritePump forwards queued messages to the connection and keeps it alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and subscribes it to the player feed.
func (h *PlayerHub) ServeWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Websocket upgrade failed", logger.ErrorField(err))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			Hub:  h,
			Conn: conn,
			Send: make(chan []byte, sendBuffer),
		}
		select {
		case h.register <- client:
		case <-ctx.Done():
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump(ctx)
	}
}
