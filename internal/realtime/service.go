package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickride/quickride/internal/chat"
	"github.com/quickride/quickride/internal/rides"
	"github.com/quickride/quickride/pkg/logger"
	"github.com/quickride/quickride/pkg/websocket"
)

const handlerTimeout = 10 * time.Second

// LocationSink accepts driver position reports.
type LocationSink interface {
	ReportLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64) error
}

// RideDirectory resolves rides for room membership checks.
type RideDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*rides.Ride, error)
}

// Service routes incoming WebSocket messages to the domain services.
// Handlers run on connection read loops; every failure is logged and
// dropped, never pushed back at the socket as a fatal error.
type Service struct {
	hub       *websocket.Hub
	locations LocationSink
	chat      *chat.Service
	ridesDir  RideDirectory
}

// NewService creates a new realtime service
func NewService(hub *websocket.Hub, locations LocationSink, chatService *chat.Service, ridesDir RideDirectory) *Service {
	return &Service{
		hub:       hub,
		locations: locations,
		chat:      chatService,
		ridesDir:  ridesDir,
	}
}

// RegisterHandlers attaches the message handlers to the hub
func (s *Service) RegisterHandlers() {
	s.hub.RegisterHandler("location_update", s.handleLocationUpdate)
	s.hub.RegisterHandler("join_ride", s.handleJoinRide)
	s.hub.RegisterHandler("leave_ride", s.handleLeaveRide)
	s.hub.RegisterHandler("chat_message", s.handleChatMessage)
}

func (s *Service) handleLocationUpdate(client *websocket.Client, msg *websocket.Message) {
	if client.Role != "driver" {
		return
	}

	lat, latOK := msg.Data["latitude"].(float64)
	lng, lngOK := msg.Data["longitude"].(float64)
	if !latOK || !lngOK {
		logger.Debug("location update without coordinates", zap.String("driver_id", client.ID))
		return
	}

	driverID, err := uuid.Parse(client.ID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := s.locations.ReportLocation(ctx, driverID, lat, lng); err != nil {
		logger.Warn("failed to store driver location",
			zap.String("driver_id", client.ID),
			zap.Error(err),
		)
	}

	// Relay the moving car to the passenger watching the ride
	if rideID := client.GetRide(); rideID != "" {
		s.hub.SendToRide(rideID, &websocket.Message{
			Type:      "driver_location",
			RideID:    rideID,
			UserID:    client.ID,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"latitude":  lat,
				"longitude": lng,
			},
		})
	}
}

func (s *Service) handleJoinRide(client *websocket.Client, msg *websocket.Message) {
	rideID, err := uuid.Parse(msg.RideID)
	if err != nil {
		return
	}
	userID, err := uuid.Parse(client.ID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ride, err := s.ridesDir.GetByID(ctx, rideID)
	if err != nil {
		logger.Debug("join for unknown ride", zap.String("ride_id", msg.RideID))
		return
	}

	if !isMember(ride, userID, client.Role) {
		logger.Warn("join rejected for non-member",
			zap.String("ride_id", msg.RideID),
			zap.String("user_id", client.ID),
		)
		return
	}

	s.hub.AddClientToRide(client.ID, rideID.String())
}

func (s *Service) handleLeaveRide(client *websocket.Client, msg *websocket.Message) {
	if msg.RideID == "" {
		return
	}
	s.hub.RemoveClientFromRide(client.ID, msg.RideID)
}

func (s *Service) handleChatMessage(client *websocket.Client, msg *websocket.Message) {
	rideID, err := uuid.Parse(msg.RideID)
	if err != nil {
		return
	}
	senderID, err := uuid.Parse(client.ID)
	if err != nil {
		return
	}

	content, _ := msg.Data["content"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	// The chat service persists and broadcasts; the socket message is
	// only the ingress
	if _, err := s.chat.SendMessage(ctx, rideID, senderID, client.Role, content); err != nil {
		logger.Debug("chat message rejected",
			zap.String("ride_id", msg.RideID),
			zap.String("sender_id", client.ID),
			zap.Error(err),
		)
	}
}

func isMember(ride *rides.Ride, userID uuid.UUID, role string) bool {
	switch role {
	case "passenger":
		return ride.PassengerID == userID
	case "driver":
		return ride.DriverID != nil && *ride.DriverID == userID
	}
	return false
}
