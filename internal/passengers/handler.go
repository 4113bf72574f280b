package passengers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/middleware"
)

// Handler exposes passenger endpoints
type Handler struct {
	repo *Repository
}

// NewHandler creates a new passenger handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts passenger routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	passengers := rg.Group("/passengers", middleware.RequireRole(middleware.RolePassenger))
	{
		passengers.GET("/me", h.GetProfile)
		passengers.GET("/rides", h.RideHistory)
	}
}

// GetProfile returns the authenticated passenger's profile
func (h *Handler) GetProfile(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	passenger, err := h.repo.GetByID(c.Request.Context(), passengerID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load passenger profile")
		return
	}

	common.SuccessResponse(c, passenger)
}

// RideHistory returns the passenger's ride IDs, newest first
func (h *Handler) RideHistory(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	ids, err := h.repo.ListRideIDs(c.Request.Context(), passengerID, limit, offset)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load ride history")
		return
	}

	common.SuccessResponse(c, gin.H{"ride_ids": ids})
}
