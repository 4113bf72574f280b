package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickride/quickride/internal/rides"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/websocket"
)

type fakeChatStore struct {
	mu       sync.Mutex
	messages []*Message
	fail     bool
}

func (f *fakeChatStore) Create(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return common.NewInternalError("storage down")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeChatStore) ListByRide(_ context.Context, rideID uuid.UUID, limit, offset int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, 0)
	for _, m := range f.messages {
		if m.RideID == rideID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeRideDir struct {
	rides map[uuid.UUID]*rides.Ride
}

func (f *fakeRideDir) GetByID(_ context.Context, id uuid.UUID) (*rides.Ride, error) {
	ride, ok := f.rides[id]
	if !ok {
		return nil, common.NewNotFoundError("ride not found")
	}
	return ride, nil
}

type fakeRoomNotifier struct {
	mu      sync.Mutex
	relayed []*websocket.Message
}

func (f *fakeRoomNotifier) SendToRide(_ string, msg *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relayed = append(f.relayed, msg)
}

func setupChat(status rides.Status) (*Service, *fakeChatStore, *fakeRoomNotifier, *rides.Ride) {
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := &rides.Ride{
		ID:          uuid.New(),
		PassengerID: passengerID,
		DriverID:    &driverID,
		Status:      status,
	}

	store := &fakeChatStore{}
	notifier := &fakeRoomNotifier{}
	service := NewService(store, &fakeRideDir{rides: map[uuid.UUID]*rides.Ride{ride.ID: ride}}, notifier)
	return service, store, notifier, ride
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	service, store, notifier, ride := setupChat(rides.StatusOngoing)

	msg, err := service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, "  on my way  ")
	require.NoError(t, err)

	assert.Equal(t, "on my way", msg.Content, "content is trimmed")

	// Persisted and relayed, both
	require.Len(t, store.messages, 1)
	require.Len(t, notifier.relayed, 1)
	assert.Equal(t, "chat_message", notifier.relayed[0].Type)
	assert.Equal(t, "on my way", notifier.relayed[0].Data["content"])
}

func TestSendMessageNotBroadcastWhenPersistFails(t *testing.T) {
	service, store, notifier, ride := setupChat(rides.StatusOngoing)
	store.fail = true

	_, err := service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, "hello")
	require.Error(t, err)
	assert.Empty(t, notifier.relayed, "a message that was not persisted must not be relayed")
}

func TestSendMessageValidation(t *testing.T) {
	service, _, _, ride := setupChat(rides.StatusOngoing)

	_, err := service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, "   ")
	assert.ErrorIs(t, err, common.ErrValidation)

	long := strings.Repeat("a", MaxMessageLength+1)
	_, err = service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, long)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSendMessageMembership(t *testing.T) {
	service, _, _, ride := setupChat(rides.StatusOngoing)

	_, err := service.SendMessage(context.Background(), ride.ID, uuid.New(), rides.PartyPassenger, "hello")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = service.SendMessage(context.Background(), ride.ID, uuid.New(), rides.PartyDriver, "hello")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// The assigned driver may chat
	_, err = service.SendMessage(context.Background(), ride.ID, *ride.DriverID, rides.PartyDriver, "hello")
	assert.NoError(t, err)
}

func TestChatClosedOutsideActiveRide(t *testing.T) {
	for _, status := range []rides.Status{rides.StatusPending, rides.StatusCompleted, rides.StatusCancelled} {
		service, _, _, ride := setupChat(status)
		_, err := service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, "hello")
		assert.ErrorIs(t, err, common.ErrConflict, "status %s", status)
	}
}

func TestLifecycleSystemMessages(t *testing.T) {
	service, store, notifier, ride := setupChat(rides.StatusAccepted)

	event, err := eventbus.NewEvent(eventbus.SubjectRideAccepted, "rides", map[string]interface{}{
		"ride_id": ride.ID.String(),
	})
	require.NoError(t, err)

	handler := service.lifecycleHandler("Driver accepted the ride")
	require.NoError(t, handler(context.Background(), event))

	require.Len(t, store.messages, 1)
	assert.Equal(t, "system", store.messages[0].SenderRole)
	assert.Equal(t, "Driver accepted the ride", store.messages[0].Content)
	require.Len(t, notifier.relayed, 1)

	// Malformed payloads are dropped, not redelivered
	bad := &eventbus.Event{ID: "x", Data: []byte(`{"ride_id": 42}`)}
	assert.NoError(t, handler(context.Background(), bad))
	assert.Len(t, store.messages, 1)
}

func TestTranscript(t *testing.T) {
	service, _, _, ride := setupChat(rides.StatusOngoing)

	for _, content := range []string{"first", "second", "third"} {
		_, err := service.SendMessage(context.Background(), ride.ID, ride.PassengerID, rides.PartyPassenger, content)
		require.NoError(t, err)
	}

	messages, err := service.Transcript(context.Background(), ride.ID, *ride.DriverID, rides.PartyDriver, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)

	// Outsiders cannot read the transcript
	_, err = service.Transcript(context.Background(), ride.ID, uuid.New(), rides.PartyPassenger, 0, 0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
