package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// RideCreatedData is emitted when a passenger requests a ride. It carries
// everything the dispatcher needs to select and notify nearby drivers.
// The ride's start code is deliberately absent: drivers learn it only
// from the passenger at pickup.
type RideCreatedData struct {
	RideID           uuid.UUID `json:"ride_id"`
	PassengerID      uuid.UUID `json:"passenger_id"`
	PickupLatitude   float64   `json:"pickup_latitude"`
	PickupLongitude  float64   `json:"pickup_longitude"`
	PickupAddress    string    `json:"pickup_address"`
	DropoffLatitude  float64   `json:"dropoff_latitude"`
	DropoffLongitude float64   `json:"dropoff_longitude"`
	DropoffAddress   string    `json:"dropoff_address"`
	VehicleClass     string    `json:"vehicle_class"`
	PaymentMethod    string    `json:"payment_method"`
	EstimatedFare    int64     `json:"estimated_fare"`
	OfferedPrice     int64     `json:"offered_price"`
	DistanceMeters   int       `json:"distance_meters"`
	DurationSeconds  int       `json:"duration_seconds"`
	RequestedAt      time.Time `json:"requested_at"`
}

// RideAcceptedData is emitted when a driver wins the ride.
type RideAcceptedData struct {
	RideID           uuid.UUID `json:"ride_id"`
	PassengerID      uuid.UUID `json:"passenger_id"`
	DriverID         uuid.UUID `json:"driver_id"`
	PickupLatitude   float64   `json:"pickup_latitude"`
	PickupLongitude  float64   `json:"pickup_longitude"`
	DropoffLatitude  float64   `json:"dropoff_latitude"`
	DropoffLongitude float64   `json:"dropoff_longitude"`
	AcceptedAt       time.Time `json:"accepted_at"`
}

// RideStartedData is emitted when the passenger's start code is verified
// and the ride begins.
type RideStartedData struct {
	RideID      uuid.UUID `json:"ride_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	StartedAt   time.Time `json:"started_at"`
}

// RideCompletedData is emitted when a ride finishes.
type RideCompletedData struct {
	RideID          uuid.UUID `json:"ride_id"`
	PassengerID     uuid.UUID `json:"passenger_id"`
	DriverID        uuid.UUID `json:"driver_id"`
	FinalPrice      int64     `json:"final_price"`
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	CompletedAt     time.Time `json:"completed_at"`
}

// RideCancelledData is emitted when a ride is cancelled.
type RideCancelledData struct {
	RideID      uuid.UUID `json:"ride_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id"` // zero if not yet assigned
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}
