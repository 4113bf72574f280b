package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id, role string) *Client {
	return &Client{
		ID:   id,
		Role: role,
		Send: make(chan *Message, 256),
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	client := newTestClient("user-1", "passenger")
	client.Hub = hub

	hub.registerClient(client)
	assert.Equal(t, 1, hub.GetClientCount())
	assert.True(t, hub.IsConnected("user-1"))

	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.GetClientCount())
	assert.False(t, hub.IsConnected("user-1"))
}

func TestHubReconnectReplacesClient(t *testing.T) {
	hub := NewHub()
	first := newTestClient("user-1", "passenger")
	first.Hub = hub
	second := newTestClient("user-1", "passenger")
	second.Hub = hub

	hub.registerClient(first)
	hub.registerClient(second)

	assert.Equal(t, 1, hub.GetClientCount())

	// The first client's channel is closed so its write pump exits
	_, open := <-first.Send
	assert.False(t, open)

	got, ok := hub.GetClient("user-1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestHubStaleUnregisterAfterReconnect(t *testing.T) {
	hub := NewHub()
	first := newTestClient("user-1", "passenger")
	first.Hub = hub
	second := newTestClient("user-1", "passenger")
	second.Hub = hub

	hub.registerClient(first)
	hub.AddClientToRide("user-1", "ride-9")
	hub.registerClient(second)

	// The dropped connection's read pump fires its own unregister last
	require.NotPanics(t, func() { hub.unregisterClient(first) })

	assert.True(t, hub.IsConnected("user-1"), "the live replacement must survive the stale unregister")
	got, ok := hub.GetClient("user-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 0, hub.GetRideCount(), "the replaced connection leaves no room membership behind")

	// The replacement still receives messages
	hub.broadcastMessage(&BroadcastMessage{
		Target:   "user",
		TargetID: "user-1",
		Message:  &Message{Type: "ride_accepted", Timestamp: time.Now()},
	})
	select {
	case msg := <-second.Send:
		assert.Equal(t, "ride_accepted", msg.Type)
	default:
		t.Fatal("expected a message on the live connection")
	}
}

func TestHubSendToUser(t *testing.T) {
	hub := NewHub()
	client := newTestClient("user-1", "driver")
	client.Hub = hub
	hub.registerClient(client)

	hub.broadcastMessage(&BroadcastMessage{
		Target:   "user",
		TargetID: "user-1",
		Message:  &Message{Type: "ride_offer", Data: map[string]interface{}{"ride_id": "r-1"}},
	})

	select {
	case msg := <-client.Send:
		assert.Equal(t, "ride_offer", msg.Type)
		assert.Equal(t, "r-1", msg.Data["ride_id"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("message not delivered")
	}
}

func TestHubSendToUnknownUserIsDropped(t *testing.T) {
	hub := NewHub()

	// Must not panic or block
	hub.broadcastMessage(&BroadcastMessage{
		Target:   "user",
		TargetID: "nobody",
		Message:  &Message{Type: "ride_offer"},
	})
}

func TestHubRideRooms(t *testing.T) {
	hub := NewHub()
	passenger := newTestClient("p-1", "passenger")
	passenger.Hub = hub
	driver := newTestClient("d-1", "driver")
	driver.Hub = hub
	outsider := newTestClient("o-1", "passenger")
	outsider.Hub = hub

	hub.registerClient(passenger)
	hub.registerClient(driver)
	hub.registerClient(outsider)

	hub.AddClientToRide("p-1", "ride-1")
	hub.AddClientToRide("d-1", "ride-1")
	assert.Equal(t, 1, hub.GetRideCount())
	assert.Equal(t, "ride-1", passenger.GetRide())

	hub.broadcastMessage(&BroadcastMessage{
		Target:   "ride",
		TargetID: "ride-1",
		Message:  &Message{Type: "chat_message", Data: map[string]interface{}{"content": "hi"}},
	})

	for _, c := range []*Client{passenger, driver} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "chat_message", msg.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("room member %s did not receive message", c.ID)
		}
	}
	assert.Empty(t, outsider.Send)

	hub.RemoveClientFromRide("p-1", "ride-1")
	hub.RemoveClientFromRide("d-1", "ride-1")
	assert.Equal(t, 0, hub.GetRideCount())
	assert.Equal(t, "", passenger.GetRide())
}

func TestHubAddUnknownClientToRideIsIgnored(t *testing.T) {
	hub := NewHub()

	hub.AddClientToRide("ghost", "ride-1")

	assert.Equal(t, 0, hub.GetRideCount())
}

func TestHubHandleMessageRouting(t *testing.T) {
	hub := NewHub()
	client := newTestClient("user-1", "driver")
	client.Hub = hub

	var handled *Message
	hub.RegisterHandler("location_update", func(_ *Client, msg *Message) {
		handled = msg
	})

	hub.HandleMessage(client, &Message{Type: "location_update"})
	require.NotNil(t, handled)

	// Unknown types are logged and dropped, never panic
	hub.HandleMessage(client, &Message{Type: "unknown"})
}
