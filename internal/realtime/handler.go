package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/quickride/quickride/pkg/websocket"
)

// Handler exposes the WebSocket endpoint
type Handler struct {
	hub *websocket.Hub
}

// NewHandler creates a new realtime handler
func NewHandler(hub *websocket.Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes mounts the WebSocket upgrade endpoint. It sits outside the
// identity middleware because browser WebSocket clients pass identity
// through query parameters.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", func(c *gin.Context) {
		websocket.HandleWebSocket(c, h.hub)
	})
}
