package rides

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickride/quickride/internal/pricing"
	"github.com/quickride/quickride/internal/routes"
	"github.com/quickride/quickride/pkg/clock"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/websocket"
)

// fakeStore is an in-memory Store with the same conditional-update
// semantics as the SQL repository: transitions mutate under a single lock
// only when the status guard matches.
type fakeStore struct {
	mu    sync.Mutex
	rides map[uuid.UUID]*Ride
}

func newFakeStore() *fakeStore {
	return &fakeStore{rides: make(map[uuid.UUID]*Ride)}
}

func (f *fakeStore) Create(_ context.Context, ride *Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	clone := *ride
	f.rides[ride.ID] = &clone
	return nil
}

func (f *fakeStore) get(id uuid.UUID) (*Ride, error) {
	ride, ok := f.rides[id]
	if !ok {
		return nil, common.NewNotFoundError("ride not found")
	}
	clone := *ride
	return &clone, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeStore) GetByIDForDriver(_ context.Context, id, driverID uuid.UUID) (*Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, common.NewNotFoundError("ride not found")
	}
	return ride, nil
}

func (f *fakeStore) Confirm(_ context.Context, rideID, driverID uuid.UUID, etaMinutes *int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok || ride.Status != StatusPending {
		return false, nil
	}
	ride.Status = StatusAccepted
	ride.DriverID = &driverID
	ride.DriverETAMinutes = etaMinutes
	ride.AcceptedAt = &at
	ride.UpdatedAt = at
	return true, nil
}

func (f *fakeStore) Start(_ context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok || ride.Status != StatusAccepted || ride.DriverID == nil || *ride.DriverID != driverID {
		return false, nil
	}
	ride.Status = StatusOngoing
	ride.StartedAt = &at
	ride.UpdatedAt = at
	return true, nil
}

func (f *fakeStore) Complete(_ context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok || ride.Status != StatusOngoing || ride.DriverID == nil || *ride.DriverID != driverID {
		return false, nil
	}
	ride.Status = StatusCompleted
	ride.CompletedAt = &at
	ride.UpdatedAt = at
	return true, nil
}

func (f *fakeStore) Cancel(_ context.Context, rideID uuid.UUID, cancelledBy string, reason *string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok || ride.Status.Terminal() {
		return false, nil
	}
	ride.Status = StatusCancelled
	ride.CancelledBy = &cancelledBy
	ride.CancelReason = reason
	ride.CancelledAt = &at
	ride.UpdatedAt = at
	return true, nil
}

func (f *fakeStore) SetRating(_ context.Context, rideID uuid.UUID, party string, entry RatingEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return common.NewNotFoundError("ride not found")
	}
	switch party {
	case PartyPassenger:
		ride.PassengerRating = &entry
	case PartyDriver:
		ride.DriverRating = &entry
	}
	return nil
}

type driverRecord struct {
	available bool
	completed int
	cancelled int
	earnings  int64
	rating    float64
	count     int
	lat, lng  *float64
}

type fakeDrivers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*driverRecord
}

func newFakeDrivers() *fakeDrivers {
	return &fakeDrivers{records: make(map[uuid.UUID]*driverRecord)}
}

func (f *fakeDrivers) record(id uuid.UUID) *driverRecord {
	if rec, ok := f.records[id]; ok {
		return rec
	}
	rec := &driverRecord{available: true}
	f.records[id] = rec
	return rec
}

func (f *fakeDrivers) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id).available = available
	return nil
}

func (f *fakeDrivers) RecordCompletion(_ context.Context, id uuid.UUID, earnings int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(id)
	rec.completed++
	rec.earnings += earnings
	return nil
}

func (f *fakeDrivers) RecordCancellation(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id).cancelled++
	return nil
}

func (f *fakeDrivers) ApplyRating(_ context.Context, id uuid.UUID, stars int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(id)
	rec.rating = (rec.rating*float64(rec.count) + float64(stars)) / float64(rec.count+1)
	rec.count++
	return nil
}

func (f *fakeDrivers) Coordinates(_ context.Context, id uuid.UUID) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(id)
	if rec.lat == nil || rec.lng == nil {
		return 0, 0, common.NewNotFoundError("driver location unknown")
	}
	return *rec.lat, *rec.lng, nil
}

type passengerRecord struct {
	completed int
	cancelled int
	rating    float64
	count     int
}

type fakePassengers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*passengerRecord
}

func newFakePassengers() *fakePassengers {
	return &fakePassengers{records: make(map[uuid.UUID]*passengerRecord)}
}

func (f *fakePassengers) record(id uuid.UUID) *passengerRecord {
	if rec, ok := f.records[id]; ok {
		return rec
	}
	rec := &passengerRecord{}
	f.records[id] = rec
	return rec
}

func (f *fakePassengers) RecordCompletion(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id).completed++
	return nil
}

func (f *fakePassengers) RecordCancellation(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id).cancelled++
	return nil
}

func (f *fakePassengers) ApplyRating(_ context.Context, id uuid.UUID, stars int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(id)
	rec.rating = (rec.rating*float64(rec.count) + float64(stars)) / float64(rec.count+1)
	rec.count++
	return nil
}

type fakeRouter struct {
	est *routes.RouteEstimate
	err error
}

func (f *fakeRouter) Route(_ context.Context, origin, destination string) (*routes.RouteEstimate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.est, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string][]*websocket.Message
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[string][]*websocket.Message)}
}

func (f *fakeNotifier) SendToUser(userID string, msg *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[userID] = append(f.messages[userID], msg)
}

func (f *fakeNotifier) sent(userID string) []*websocket.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[userID]
}

type fakePublisher struct {
	subjects chan string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{subjects: make(chan string, 32)}
}

func (f *fakePublisher) Publish(_ context.Context, subject string, _ *eventbus.Event) error {
	f.subjects <- subject
	return nil
}

func (f *fakePublisher) waitFor(t *testing.T, subject string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.subjects:
			if got == subject {
				return
			}
		case <-deadline:
			t.Fatalf("event %s was not published", subject)
		}
	}
}

type testEnv struct {
	service    *Service
	store      *fakeStore
	drivers    *fakeDrivers
	passengers *fakePassengers
	router     *fakeRouter
	notifier   *fakeNotifier
	publisher  *fakePublisher
}

func newEnv() *testEnv {
	fareCfg := config.FareConfig{
		Car:            config.ClassRates{Base: 10000, PerKm: 9000, PerMinute: 400},
		Moto:           config.ClassRates{Base: 5000, PerKm: 4000, PerMinute: 200},
		NightSurcharge: 1.2,
		NightStartHour: 19,
		NightEndHour:   5,
		Timezone:       "UTC",
	}
	noon := clock.Fixed{T: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}

	env := &testEnv{
		store:      newFakeStore(),
		drivers:    newFakeDrivers(),
		passengers: newFakePassengers(),
		router:     &fakeRouter{est: &routes.RouteEstimate{DistanceMeters: 5000, DurationSeconds: 600}},
		notifier:   newFakeNotifier(),
		publisher:  newFakePublisher(),
	}
	env.service = NewService(
		env.store,
		env.drivers,
		env.passengers,
		env.router,
		pricing.NewCalculator(fareCfg, noon),
		env.notifier,
		env.publisher,
		config.DispatchConfig{RadiusKm: 5, FallbackETAMin: 7, AverageSpeedKmh: 30},
	)
	return env
}

func createRide(t *testing.T, env *testEnv, passengerID uuid.UUID, offered *int64) *Ride {
	t.Helper()
	ride, err := env.service.RequestRide(context.Background(), passengerID, &CreateRideRequest{
		PickupAddress:    "10 Main St",
		PickupLatitude:   37.9601,
		PickupLongitude:  58.3261,
		DropoffAddress:   "22 Oak Ave",
		DropoffLatitude:  37.9381,
		DropoffLongitude: 58.3892,
		VehicleClass:     pricing.ClassCar,
		PaymentMethod:    PaymentCash,
		OfferedPrice:     offered,
	})
	require.NoError(t, err)
	return ride
}

func TestRequestRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()

	ride := createRide(t, env, passengerID, nil)

	assert.Equal(t, StatusPending, ride.Status)
	assert.Equal(t, passengerID, ride.PassengerID)
	// 10000 + 5*9000 + 10*400 at noon
	assert.Equal(t, int64(59000), ride.Fare)
	assert.Equal(t, ride.Fare, ride.FinalPrice)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), ride.StartCode)
	assert.Nil(t, ride.DriverID)

	env.publisher.waitFor(t, eventbus.SubjectRideCreated)
}

func TestRequestRideFinalPricePolicy(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()

	above := int64(72000)
	ride := createRide(t, env, passengerID, &above)
	assert.Equal(t, above, ride.FinalPrice, "offer above fare wins")

	below := int64(1000)
	ride = createRide(t, env, passengerID, &below)
	assert.Equal(t, ride.Fare, ride.FinalPrice, "offer below fare never discounts")
}

func TestRequestRideUpstreamFailure(t *testing.T) {
	env := newEnv()
	env.router.err = common.NewUpstreamError("route lookup failed", errors.New("timeout"))

	_, err := env.service.RequestRide(context.Background(), uuid.New(), &CreateRideRequest{
		PickupAddress:  "10 Main St",
		DropoffAddress: "22 Oak Ave",
		VehicleClass:   pricing.ClassCar,
		PaymentMethod:  PaymentCash,
	})
	require.Error(t, err)

	// Nothing persisted
	assert.Empty(t, env.store.rides)
}

func TestRequestRideDefaultsPaymentMethod(t *testing.T) {
	env := newEnv()

	ride, err := env.service.RequestRide(context.Background(), uuid.New(), &CreateRideRequest{
		PickupAddress:  "10 Main St",
		DropoffAddress: "22 Oak Ave",
		VehicleClass:   pricing.ClassCar,
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentCash, ride.PaymentMethod)
}

func TestRequestRideNoRoute(t *testing.T) {
	env := newEnv()
	env.router.err = routes.ErrNoRoute

	_, err := env.service.RequestRide(context.Background(), uuid.New(), &CreateRideRequest{
		PickupAddress:  "nowhere",
		DropoffAddress: "nowhere else",
		VehicleClass:   pricing.ClassCar,
		PaymentMethod:  PaymentCash,
	})
	assert.ErrorIs(t, err, common.ErrValidation, "an unroutable address pair is a caller error")
	assert.Empty(t, env.store.rides)
}

func TestConfirmRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)

	confirmed, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, confirmed.Status)
	require.NotNil(t, confirmed.DriverID)
	assert.Equal(t, driverID, *confirmed.DriverID)
	require.NotNil(t, confirmed.DriverETAMinutes)
	assert.Equal(t, 7, *confirmed.DriverETAMinutes, "unknown location uses fallback ETA")
	assert.Empty(t, confirmed.StartCode, "driver response must not leak the start code")

	assert.False(t, env.drivers.records[driverID].available)

	msgs := env.notifier.sent(passengerID.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, "ride_accepted", msgs[0].Type)
}

func TestConfirmRideWrongStates(t *testing.T) {
	env := newEnv()
	driverID := uuid.New()

	for _, status := range []Status{StatusAccepted, StatusOngoing, StatusCompleted, StatusCancelled} {
		ride := createRide(t, env, uuid.New(), nil)
		env.store.mu.Lock()
		env.store.rides[ride.ID].Status = status
		env.store.mu.Unlock()

		_, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
		require.Error(t, err, "status %s", status)
		assert.ErrorIs(t, err, common.ErrConflict)
	}

	_, err := env.service.ConfirmRide(context.Background(), uuid.New(), driverID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConfirmRideSingleWinner(t *testing.T) {
	env := newEnv()
	ride := createRide(t, env, uuid.New(), nil)

	const contenders = 16
	driverIDs := make([]uuid.UUID, contenders)
	for i := range driverIDs {
		driverIDs[i] = uuid.New()
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.service.ConfirmRide(context.Background(), ride.ID, driverIDs[i])
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, common.ErrConflict)
		}
	}
	assert.Equal(t, 1, winners, "exactly one confirm call must win")

	final, err := env.store.GetByID(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, final.Status)
	require.NotNil(t, final.DriverID)
	assert.Contains(t, driverIDs, *final.DriverID)
}

func TestStartRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)
	code := ride.StartCode

	_, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	// Wrong code leaves the ride accepted
	_, err = env.service.StartRide(context.Background(), ride.ID, driverID, "000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidOTP)

	current, err := env.store.GetByID(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, current.Status)

	// Another driver cannot start the ride even with the right code
	_, err = env.service.StartRide(context.Background(), ride.ID, uuid.New(), code)
	assert.ErrorIs(t, err, common.ErrNotFound)

	started, err := env.service.StartRide(context.Background(), ride.ID, driverID, code)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, started.Status)

	// A second start attempt is a state conflict
	_, err = env.service.StartRide(context.Background(), ride.ID, driverID, code)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestEndRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)
	code := ride.StartCode

	_, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	// Ending before start is a conflict
	_, err = env.service.EndRide(context.Background(), ride.ID, driverID)
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = env.service.StartRide(context.Background(), ride.ID, driverID, code)
	require.NoError(t, err)

	ended, err := env.service.EndRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ended.Status)

	driver := env.drivers.records[driverID]
	assert.Equal(t, 1, driver.completed)
	assert.Equal(t, ride.FinalPrice, driver.earnings)
	assert.True(t, driver.available, "driver reopens for new rides")

	passenger := env.passengers.records[passengerID]
	assert.Equal(t, 1, passenger.completed)
}

func TestCancelRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)

	_, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	cancelled, err := env.service.CancelRide(context.Background(), ride.ID, PartyDriver, driverID, "breakdown")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, PartyDriver, *cancelled.CancelledBy)

	driver := env.drivers.records[driverID]
	assert.Equal(t, 1, driver.cancelled)
	assert.True(t, driver.available, "cancelled assignment returns driver to pool")

	// The passenger is told, not the driver
	msgs := env.notifier.sent(passengerID.String())
	var cancelMsgs int
	for _, m := range msgs {
		if m.Type == "ride_cancelled" {
			cancelMsgs++
		}
	}
	assert.Equal(t, 1, cancelMsgs)
}

func TestCancelRideByPassenger(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	ride := createRide(t, env, passengerID, nil)

	// A stranger cannot cancel someone else's ride
	_, err := env.service.CancelRide(context.Background(), ride.ID, PartyPassenger, uuid.New(), "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	cancelled, err := env.service.CancelRide(context.Background(), ride.ID, PartyPassenger, passengerID, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 1, env.passengers.records[passengerID].cancelled)
}

func TestTerminalStatesAreIdempotent(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()

	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		ride := createRide(t, env, passengerID, nil)
		env.store.mu.Lock()
		env.store.rides[ride.ID].Status = terminal
		env.store.rides[ride.ID].DriverID = &driverID
		env.store.mu.Unlock()

		_, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
		assert.ErrorIs(t, err, common.ErrConflict, "confirm on %s", terminal)

		_, err = env.service.StartRide(context.Background(), ride.ID, driverID, ride.StartCode)
		assert.ErrorIs(t, err, common.ErrConflict, "start on %s", terminal)

		_, err = env.service.EndRide(context.Background(), ride.ID, driverID)
		assert.ErrorIs(t, err, common.ErrConflict, "end on %s", terminal)

		_, err = env.service.CancelRide(context.Background(), ride.ID, PartyPassenger, passengerID, "")
		assert.ErrorIs(t, err, common.ErrConflict, "cancel on %s", terminal)

		after, err := env.store.GetByID(context.Background(), ride.ID)
		require.NoError(t, err)
		assert.Equal(t, terminal, after.Status, "terminal state never changes")
	}
}

func TestRateRide(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)

	// Rating before completion is a conflict
	_, err := env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 5, "")
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	_, err = env.service.StartRide(context.Background(), ride.ID, driverID, ride.StartCode)
	require.NoError(t, err)
	_, err = env.service.EndRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	// Bounds
	_, err = env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 0, "")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 6, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	// Seed the driver with prior ratings: avg 4.0 over 3 rides
	env.drivers.records[driverID].rating = 4.0
	env.drivers.records[driverID].count = 3

	rated, err := env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 5, "great trip")
	require.NoError(t, err)
	require.NotNil(t, rated.PassengerRating)
	assert.Equal(t, 5, rated.PassengerRating.Stars)

	driver := env.drivers.records[driverID]
	assert.InDelta(t, (4.0*3+5)/4, driver.rating, 1e-9)
	assert.Equal(t, 4, driver.count)

	// Driver rates the passenger back
	rated, err = env.service.RateRide(context.Background(), ride.ID, PartyDriver, driverID, 4, "")
	require.NoError(t, err)
	require.NotNil(t, rated.DriverRating)
	assert.Equal(t, 4, rated.DriverRating.Stars)
	assert.InDelta(t, 4.0, env.passengers.records[passengerID].rating, 1e-9)

	// Re-rating overwrites the slot, it does not accumulate
	rated, err = env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 3, rated.PassengerRating.Stars)
}

func TestEndToEndScenario(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()

	ride := createRide(t, env, passengerID, nil)
	fare := ride.Fare

	confirmed, err := env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, confirmed.Status)

	started, err := env.service.StartRide(context.Background(), ride.ID, driverID, ride.StartCode)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, started.Status)

	ended, err := env.service.EndRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ended.Status)

	driver := env.drivers.records[driverID]
	assert.Equal(t, 1, driver.completed)
	assert.Equal(t, fare, driver.earnings)
	assert.Equal(t, 1, env.passengers.records[passengerID].completed)

	env.drivers.records[driverID].rating = 4.5
	env.drivers.records[driverID].count = 10

	_, err = env.service.RateRide(context.Background(), ride.ID, PartyPassenger, passengerID, 5, "")
	require.NoError(t, err)
	assert.InDelta(t, (4.5*10+5)/11, driver.rating, 1e-9)

	env.publisher.waitFor(t, eventbus.SubjectRideCompleted)
}

func TestGetRideScoping(t *testing.T) {
	env := newEnv()
	passengerID := uuid.New()
	driverID := uuid.New()
	ride := createRide(t, env, passengerID, nil)

	// The passenger sees the start code
	got, err := env.service.GetRide(context.Background(), ride.ID, passengerID, PartyPassenger)
	require.NoError(t, err)
	assert.NotEmpty(t, got.StartCode)

	// An unassigned driver sees nothing
	_, err = env.service.GetRide(context.Background(), ride.ID, driverID, PartyDriver)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = env.service.ConfirmRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	// The assigned driver sees the ride without the code
	got, err = env.service.GetRide(context.Background(), ride.ID, driverID, PartyDriver)
	require.NoError(t, err)
	assert.Empty(t, got.StartCode)
}
