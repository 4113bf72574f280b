package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/middleware"
)

// Handler exposes chat endpoints
type Handler struct {
	service *Service
}

// NewHandler creates a new chat handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts chat routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rides/:id/chat", h.Transcript)
	rg.POST("/rides/:id/chat", h.SendMessage)
}

// SendMessage posts a chat message into the ride
func (h *Handler) SendMessage(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid ride id")
		return
	}
	senderID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), rideID, senderID, middleware.GetUserRole(c), req.Content)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to send message")
		return
	}

	common.CreatedResponse(c, msg)
}

// Transcript returns the ride's chat history
func (h *Handler) Transcript(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid ride id")
		return
	}
	callerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.service.Transcript(c.Request.Context(), rideID, callerID, middleware.GetUserRole(c), limit, offset)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load transcript")
		return
	}

	common.SuccessResponse(c, gin.H{"messages": messages})
}
