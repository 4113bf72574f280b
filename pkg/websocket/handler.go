package websocket

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the edge proxy
		return true
	},
}

// HandleWebSocket upgrades the connection and registers the client with the
// hub. Identity comes from the edge-verified headers, with query parameter
// fallbacks for browser WebSocket clients that cannot set headers.
func HandleWebSocket(c *gin.Context, hub *Hub) {
	rawID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if rawID == "" {
		rawID = strings.TrimSpace(c.Query("user_id"))
	}

	userID, err := uuid.Parse(rawID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
		return
	}

	role := strings.ToLower(strings.TrimSpace(c.GetHeader("X-User-Role")))
	if role == "" {
		role = strings.ToLower(strings.TrimSpace(c.Query("role")))
	}
	if role != "passenger" && role != "driver" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user role"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(userID.String(), conn, hub, role)

	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
