package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickride/quickride/internal/pricing"
	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/websocket"
)

type fakeSource struct {
	candidates []*Candidate
	err        error
}

func (f *fakeSource) ListAvailableByClass(_ context.Context, _ string) ([]*Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeOfferSink struct {
	mu     sync.Mutex
	offers map[string][]*websocket.Message
}

func newFakeOfferSink() *fakeOfferSink {
	return &fakeOfferSink{offers: make(map[string][]*websocket.Message)}
}

func (f *fakeOfferSink) SendToUser(userID string, msg *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers[userID] = append(f.offers[userID], msg)
}

func ptr(v float64) *float64 { return &v }

// pickup at the Ashgabat city center reference point used across tests
const (
	pickupLat = 37.9601
	pickupLng = 58.3261
)

func TestFindEligibleDriversRadius(t *testing.T) {
	// Roughly 1 degree of latitude is 111.19 km, so 0.044966 degrees is
	// almost exactly 5 km due north.
	atBoundary := pickupLat + 5.0/111.194926
	justBeyond := pickupLat + 5.001/111.194926

	near := uuid.New()
	boundary := uuid.New()
	beyond := uuid.New()
	noCoords := uuid.New()

	source := &fakeSource{candidates: []*Candidate{
		{DriverID: near, Latitude: ptr(pickupLat + 0.01), Longitude: ptr(pickupLng)},
		{DriverID: boundary, Latitude: ptr(atBoundary), Longitude: ptr(pickupLng)},
		{DriverID: beyond, Latitude: ptr(justBeyond), Longitude: ptr(pickupLng)},
		{DriverID: noCoords},
	}}
	service := NewService(source, newFakeOfferSink(), config.DispatchConfig{RadiusKm: 5})

	eligible, err := service.FindEligibleDrivers(context.Background(), pickupLat, pickupLng, 5, pricing.ClassCar)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(eligible))
	for _, d := range eligible {
		ids = append(ids, d.DriverID)
	}

	assert.Contains(t, ids, near)
	assert.Contains(t, ids, boundary, "driver exactly on the boundary is included")
	assert.NotContains(t, ids, beyond, "driver just past the boundary is excluded")
	assert.NotContains(t, ids, noCoords, "driver without coordinates is skipped, not errored")
}

func TestHandleRideCreatedSendsOffers(t *testing.T) {
	driverA := uuid.New()
	driverB := uuid.New()

	source := &fakeSource{candidates: []*Candidate{
		{DriverID: driverA, Latitude: ptr(pickupLat), Longitude: ptr(pickupLng)},
		{DriverID: driverB, Latitude: ptr(pickupLat + 0.005), Longitude: ptr(pickupLng)},
	}}
	sink := newFakeOfferSink()
	service := NewService(source, sink, config.DispatchConfig{RadiusKm: 5})

	data := eventbus.RideCreatedData{
		RideID:          uuid.New(),
		PassengerID:     uuid.New(),
		PickupLatitude:  pickupLat,
		PickupLongitude: pickupLng,
		PickupAddress:   "10 Main St",
		VehicleClass:    pricing.ClassCar,
		EstimatedFare:   59000,
		RequestedAt:     time.Now(),
	}
	event, err := eventbus.NewEvent(eventbus.SubjectRideCreated, "rides", data)
	require.NoError(t, err)

	require.NoError(t, service.HandleRideCreated(context.Background(), event))

	for _, driverID := range []uuid.UUID{driverA, driverB} {
		msgs := sink.offers[driverID.String()]
		require.Len(t, msgs, 1, "driver %s", driverID)
		assert.Equal(t, "ride_offer", msgs[0].Type)

		// The offer payload must never contain the start code
		payload, err := json.Marshal(msgs[0])
		require.NoError(t, err)
		assert.NotContains(t, string(payload), "start_code")
	}
}

func TestHandleRideCreatedNoDrivers(t *testing.T) {
	sink := newFakeOfferSink()
	service := NewService(&fakeSource{}, sink, config.DispatchConfig{RadiusKm: 5})

	data := eventbus.RideCreatedData{
		RideID:          uuid.New(),
		PickupLatitude:  pickupLat,
		PickupLongitude: pickupLng,
		VehicleClass:    pricing.ClassMoto,
	}
	event, err := eventbus.NewEvent(eventbus.SubjectRideCreated, "rides", data)
	require.NoError(t, err)

	// No drivers is not an error; the ride simply stays pending
	require.NoError(t, service.HandleRideCreated(context.Background(), event))
	assert.Empty(t, sink.offers)
}

func TestHandleRideCreatedMalformedEvent(t *testing.T) {
	service := NewService(&fakeSource{}, newFakeOfferSink(), config.DispatchConfig{RadiusKm: 5})

	event := &eventbus.Event{
		ID:   uuid.New().String(),
		Type: eventbus.SubjectRideCreated,
		Data: json.RawMessage(`{"ride_id": not-json`),
	}

	// Malformed events are dropped, not retried
	assert.NoError(t, service.HandleRideCreated(context.Background(), event))
}
