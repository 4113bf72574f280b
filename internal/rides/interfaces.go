package rides

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/websocket"
)

// Store is the persistence surface the ride service depends on. The
// transition methods return false when the status guard did not match, so
// the single UPDATE doubles as the concurrency control: two drivers
// confirming the same pending ride can never both see true.
type Store interface {
	Create(ctx context.Context, ride *Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)
	GetByIDForDriver(ctx context.Context, id, driverID uuid.UUID) (*Ride, error)

	// Confirm atomically moves pending -> accepted and assigns the driver.
	Confirm(ctx context.Context, rideID, driverID uuid.UUID, etaMinutes *int, at time.Time) (bool, error)
	// Start atomically moves accepted -> ongoing, scoped to the driver.
	Start(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error)
	// Complete atomically moves ongoing -> completed, scoped to the driver.
	Complete(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error)
	// Cancel atomically cancels unless the ride is already terminal.
	Cancel(ctx context.Context, rideID uuid.UUID, cancelledBy string, reason *string, at time.Time) (bool, error)

	// SetRating writes one half of the bidirectional rating, overwriting
	// any previous entry from the same party.
	SetRating(ctx context.Context, rideID uuid.UUID, party string, entry RatingEntry) error
}

// DriverDirectory is the driver-side state the ride service mutates.
type DriverDirectory interface {
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	RecordCompletion(ctx context.Context, driverID uuid.UUID, earnings int64) error
	RecordCancellation(ctx context.Context, driverID uuid.UUID) error
	ApplyRating(ctx context.Context, driverID uuid.UUID, stars int) error
	Coordinates(ctx context.Context, driverID uuid.UUID) (lat, lng float64, err error)
}

// PassengerDirectory is the passenger-side state the ride service mutates.
type PassengerDirectory interface {
	RecordCompletion(ctx context.Context, passengerID uuid.UUID) error
	RecordCancellation(ctx context.Context, passengerID uuid.UUID) error
	ApplyRating(ctx context.Context, passengerID uuid.UUID, stars int) error
}

// Notifier pushes events to live client connections. Delivery is best
// effort; a stale or absent connection is silently skipped.
type Notifier interface {
	SendToUser(userID string, msg *websocket.Message)
}

// Publisher emits ride lifecycle events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// FareQuoter prices a trip for a vehicle class.
type FareQuoter interface {
	Quote(distanceMeters, durationSeconds int, class string) (int64, error)
	QuoteAll(distanceMeters, durationSeconds int) (map[string]int64, error)
}

// CodeGenerator issues ride start codes.
type CodeGenerator func() (string, error)
