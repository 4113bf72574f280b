package rides

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/middleware"
)

// Handler exposes ride lifecycle endpoints
type Handler struct {
	service *Service
}

// NewHandler creates a new rides handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts ride routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rides := rg.Group("/rides")
	{
		rides.POST("/quote", h.Quote)
		rides.POST("", middleware.RequireRole(middleware.RolePassenger), h.RequestRide)
		rides.GET("/:id", h.GetRide)
		rides.POST("/:id/confirm", middleware.RequireRole(middleware.RoleDriver), h.ConfirmRide)
		rides.POST("/:id/start", middleware.RequireRole(middleware.RoleDriver), h.StartRide)
		rides.POST("/:id/end", middleware.RequireRole(middleware.RoleDriver), h.EndRide)
		rides.POST("/:id/cancel", h.CancelRide)
		rides.POST("/:id/rate", h.RateRide)
	}
}

func rideID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid ride id")
		return uuid.Nil, false
	}
	return id, true
}

// Quote prices a trip without creating a ride
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to price trip")
		return
	}

	common.SuccessResponse(c, quote)
}

// RequestRide creates a new ride for the authenticated passenger
func (h *Handler) RequestRide(c *gin.Context) {
	passengerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	ride, err := h.service.RequestRide(c.Request.Context(), passengerID, &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to request ride")
		return
	}

	common.CreatedResponse(c, ride)
}

// GetRide returns the ride scoped to the caller
func (h *Handler) GetRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	callerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), id, callerID, middleware.GetUserRole(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to load ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// ConfirmRide lets a driver take a pending ride
func (h *Handler) ConfirmRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	ride, err := h.service.ConfirmRide(c.Request.Context(), id, driverID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to confirm ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// StartRide verifies the start code and begins the trip
func (h *Handler) StartRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	ride, err := h.service.StartRide(c.Request.Context(), id, driverID, req.Code)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to start ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// EndRide completes the trip
func (h *Handler) EndRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	driverID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	ride, err := h.service.EndRide(c.Request.Context(), id, driverID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to end ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// CancelRide cancels the ride on behalf of the caller
func (h *Handler) CancelRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	callerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), id, middleware.GetUserRole(c), callerID, req.Reason)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to cancel ride")
		return
	}

	common.SuccessResponse(c, ride)
}

// RateRide records the caller's rating for a completed ride
func (h *Handler) RateRide(c *gin.Context) {
	id, ok := rideID(c)
	if !ok {
		return
	}
	callerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	ride, err := h.service.RateRide(c.Request.Context(), id, middleware.GetUserRole(c), callerID, req.Stars, req.Comment)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to rate ride")
		return
	}

	common.SuccessResponse(c, ride)
}
