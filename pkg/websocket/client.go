package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"` // location_update, chat_message, ride_offer, ...
	RideID    string                 `json:"ride_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID     string          // User ID
	RideID string          // Current ride ID (if in a ride room)
	Role   string          // "passenger" or "driver"
	Conn   *websocket.Conn // WebSocket connection
	Send   chan *Message   // Buffered channel of outbound messages
	Hub    *Hub            // Reference to hub
	mu     sync.RWMutex
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, role string) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan *Message, 256),
		Hub:  hub,
		Role: role,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Sender identity always comes from the connection, not the payload
		msg.Timestamp = time.Now()
		msg.UserID = c.ID

		c.Hub.HandleMessage(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
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
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := c.Conn.WriteJSON(message)
			if err != nil {
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

// SendMessage sends a message to the client without blocking the hub. A full
// buffer means the consumer stopped draining: the message is dropped and the
// hub is asked to evict the connection. The hub alone closes Send.
func (c *Client) SendMessage(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		log.Printf("Client %s send buffer full, evicting connection", c.ID)
		go func() { c.Hub.Unregister <- c }()
	}
}

// SetRide associates the client with a ride
func (c *Client) SetRide(rideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RideID = rideID
}

// GetRide returns the current ride ID
func (c *Client) GetRide() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RideID
}
