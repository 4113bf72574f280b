package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickride/quickride/internal/rides"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/logger"
	"github.com/quickride/quickride/pkg/websocket"
)

// Store is the persistence surface for chat transcripts.
type Store interface {
	Create(ctx context.Context, msg *Message) error
	ListByRide(ctx context.Context, rideID uuid.UUID, limit, offset int) ([]*Message, error)
}

// RideDirectory resolves rides for membership checks.
type RideDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*rides.Ride, error)
}

// RoomNotifier relays a message to everyone in a ride room.
type RoomNotifier interface {
	SendToRide(rideID string, msg *websocket.Message)
}

// Service implements in-ride chat. A message is durably persisted and then
// relayed to the ride room; the relay is best effort, the persist is not.
type Service struct {
	store    Store
	ridesDir RideDirectory
	notifier RoomNotifier
}

// NewService creates a new chat service
func NewService(store Store, ridesDir RideDirectory, notifier RoomNotifier) *Service {
	return &Service{store: store, ridesDir: ridesDir, notifier: notifier}
}

// SendMessage appends a message to the ride transcript and relays it to the
// ride room
func (s *Service) SendMessage(ctx context.Context, rideID, senderID uuid.UUID, senderRole, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.NewValidationError("message content is required")
	}
	if len(content) > MaxMessageLength {
		return nil, common.NewValidationError("message exceeds 500 characters")
	}

	ride, err := s.ridesDir.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMember(ride, senderID, senderRole); err != nil {
		return nil, err
	}
	if ride.Status.Terminal() || ride.Status == rides.StatusPending {
		return nil, common.NewStateConflictError("chat is only open during an active ride")
	}

	msg := &Message{
		ID:         uuid.New(),
		RideID:     rideID,
		SenderID:   senderID,
		SenderRole: senderRole,
		Content:    content,
		CreatedAt:  time.Now(),
	}

	if err := s.store.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.broadcast(msg)
	return msg, nil
}

// SendSystemMessage appends an automated note to the transcript, such as a
// ride state change announcement
func (s *Service) SendSystemMessage(ctx context.Context, rideID uuid.UUID, content string) error {
	msg := &Message{
		ID:         uuid.New(),
		RideID:     rideID,
		SenderID:   uuid.Nil,
		SenderRole: "system",
		Content:    content,
		CreatedAt:  time.Now(),
	}

	if err := s.store.Create(ctx, msg); err != nil {
		return err
	}

	s.broadcast(msg)
	return nil
}

// Subscriber attaches durable consumers to the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, consumerName string, handler eventbus.HandlerFunc) error
}

// SubscribeLifecycle posts automated transcript notes when the ride changes
// state, so both parties see the transition in the conversation
func (s *Service) SubscribeLifecycle(ctx context.Context, bus Subscriber) error {
	subjects := map[string]string{
		eventbus.SubjectRideAccepted:  "Driver accepted the ride",
		eventbus.SubjectRideStarted:   "Ride started",
		eventbus.SubjectRideCompleted: "Ride completed",
	}
	for subject, note := range subjects {
		if err := bus.Subscribe(ctx, subject, "chat-"+strings.ReplaceAll(subject, ".", "-"), s.lifecycleHandler(note)); err != nil {
			return err
		}
	}
	return nil
}

// lifecycleHandler always acks: a missing transcript note is not worth a
// redelivery storm.
func (s *Service) lifecycleHandler(note string) eventbus.HandlerFunc {
	return func(ctx context.Context, event *eventbus.Event) error {
		var data struct {
			RideID uuid.UUID `json:"ride_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Warn("malformed lifecycle event", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		if err := s.SendSystemMessage(ctx, data.RideID, note); err != nil {
			logger.Warn("failed to post system chat message",
				zap.String("ride_id", data.RideID.String()),
				zap.Error(err),
			)
		}
		return nil
	}
}

// Transcript returns the ride's chat history, scoped to ride members
func (s *Service) Transcript(ctx context.Context, rideID, callerID uuid.UUID, callerRole string, limit, offset int) ([]*Message, error) {
	ride, err := s.ridesDir.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMember(ride, callerID, callerRole); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByRide(ctx, rideID, limit, offset)
}

func (s *Service) authorizeMember(ride *rides.Ride, userID uuid.UUID, role string) error {
	switch role {
	case rides.PartyPassenger:
		if ride.PassengerID == userID {
			return nil
		}
	case rides.PartyDriver:
		if ride.DriverID != nil && *ride.DriverID == userID {
			return nil
		}
	}
	return common.NewNotFoundError("ride not found")
}

func (s *Service) broadcast(msg *Message) {
	s.notifier.SendToRide(msg.RideID.String(), &websocket.Message{
		Type:      "chat_message",
		RideID:    msg.RideID.String(),
		UserID:    msg.SenderID.String(),
		Timestamp: msg.CreatedAt,
		Data: map[string]interface{}{
			"id":          msg.ID.String(),
			"sender_role": msg.SenderRole,
			"content":     msg.Content,
		},
	})
	logger.Debug("chat message relayed", zap.String("ride_id", msg.RideID.String()))
}
