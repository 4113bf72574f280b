package websocket

import (
	"log"
	"sync"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by user ID
	clients map[string]*Client

	// Clients grouped by ride ID
	rides map[string]map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to specific users
	Broadcast chan *BroadcastMessage

	// Message handlers by message type
	handlers map[string]MessageHandler

	mu sync.RWMutex
}

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	Target   string   // "user", "ride", "all"
	TargetID string   // User ID or Ride ID
	Message  *Message // Message to send
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rides:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("WebSocket Hub started")
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect replaces the previous connection for the same user. The
	// stale connection is fully evicted here; the unregister its read pump
	// fires later is a no-op thanks to the identity check below.
	if existingClient, ok := h.clients[client.ID]; ok {
		h.removeFromRide(existingClient)
		close(existingClient.Send)
	}

	h.clients[client.ID] = client
	log.Printf("Client registered: %s (role: %s)", client.ID, client.Role)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Only the connection currently on record may unregister itself. A
	// connection already replaced by a reconnect must not evict its
	// replacement or close the channel a second time.
	if current, ok := h.clients[client.ID]; !ok || current != client {
		return
	}

	delete(h.clients, client.ID)
	h.removeFromRide(client)
	close(client.Send)
	log.Printf("Client unregistered: %s", client.ID)
}

// removeFromRide drops the client from its ride room. Caller holds h.mu.
func (h *Hub) removeFromRide(client *Client) {
	rideID := client.GetRide()
	if rideID == "" {
		return
	}
	if ride, ok := h.rides[rideID]; ok {
		delete(ride, client.ID)
		if len(ride) == 0 {
			delete(h.rides, rideID)
		}
	}
}

func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case "user":
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}

	case "ride":
		if ride, ok := h.rides[broadcast.TargetID]; ok {
			for _, client := range ride {
				client.SendMessage(broadcast.Message)
			}
		}

	case "all":
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
	}
}

// HandleMessage routes incoming messages to appropriate handlers
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if exists {
		handler(client, msg)
	} else {
		log.Printf("No handler for message type: %s", msg.Type)
	}
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// AddClientToRide adds a client to a ride room
func (h *Hub) AddClientToRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	if _, ok := h.rides[rideID]; !ok {
		h.rides[rideID] = make(map[string]*Client)
	}

	h.rides[rideID][clientID] = client
	client.SetRide(rideID)

	log.Printf("Client %s joined ride %s", clientID, rideID)
}

// RemoveClientFromRide removes a client from a ride room
func (h *Hub) RemoveClientFromRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ride, ok := h.rides[rideID]; ok {
		delete(ride, clientID)
		if len(ride) == 0 {
			delete(h.rides, rideID)
		}
	}

	if client, ok := h.clients[clientID]; ok {
		client.SetRide("")
	}
}

// SendToUser sends a message to a specific user. Delivery is best effort:
// if the user has no live connection the message is dropped.
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "user",
		TargetID: userID,
		Message:  msg,
	}
}

// SendToRide sends a message to all clients in a ride
func (h *Hub) SendToRide(rideID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "ride",
		TargetID: rideID,
		Message:  msg,
	}
}

// SendToAll broadcasts a message to all connected clients
func (h *Hub) SendToAll(msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:  "all",
		Message: msg,
	}
}

// IsConnected reports whether the user currently has a live connection
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// GetClient returns a client by ID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRideCount returns the number of active ride rooms
func (h *Hub) GetRideCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides)
}
