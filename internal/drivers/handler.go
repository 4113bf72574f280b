package drivers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/middleware"
)

// Handler exposes driver endpoints
type Handler struct {
	service *Service
}

// NewHandler creates a new driver handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts driver routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	drivers := rg.Group("/drivers", middleware.RequireRole(middleware.RoleDriver))
	{
		drivers.GET("/me", h.GetProfile)
		drivers.PUT("/availability", h.SetAvailability)
		drivers.POST("/location", h.ReportLocation)
		drivers.GET("/rides", h.RideHistory)
	}
}

// GetProfile returns the authenticated driver's profile
func (h *Handler) GetProfile(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	driver, err := h.service.GetProfile(c.Request.Context(), driverID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load driver profile")
		return
	}

	common.SuccessResponse(c, driver)
}

// SetAvailability toggles the driver's availability flag
func (h *Handler) SetAvailability(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.service.SetAvailability(c.Request.Context(), driverID, *req.Available); err != nil {
		common.HandleServiceError(c, err, "Failed to update availability")
		return
	}

	common.SuccessResponse(c, gin.H{"available": *req.Available})
}

// ReportLocation stores the driver's current position
func (h *Handler) ReportLocation(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.service.ReportLocation(c.Request.Context(), driverID, req.Latitude, req.Longitude); err != nil {
		common.HandleServiceError(c, err, "Failed to update location")
		return
	}

	common.SuccessResponse(c, gin.H{"status": "ok"})
}

// RideHistory returns the driver's ride IDs, newest first
func (h *Handler) RideHistory(c *gin.Context) {
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ids, err := h.service.RideHistory(c.Request.Context(), driverID, limit, offset)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load ride history")
		return
	}

	common.SuccessResponse(c, gin.H{"ride_ids": ids})
}
