package rides

import (
	"time"

	"github.com/google/uuid"
)

// Status is the ride lifecycle state.
type Status string

// Ride lifecycle states. Completed and cancelled are terminal.
const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Payment methods accepted at ride creation.
const (
	PaymentCash   = "cash"
	PaymentWallet = "wallet"
)

// Parties that can cancel or rate a ride.
const (
	PartyPassenger = "passenger"
	PartyDriver    = "driver"
)

// RatingEntry is one half of a ride's bidirectional rating.
type RatingEntry struct {
	Stars   int       `json:"stars"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

// Ride is one passenger trip request and its full lifecycle record.
//
// StartCode is the numeric code the passenger reads to the driver at pickup.
// It is returned to the passenger who created the ride and must never appear
// in driver-facing payloads; use Sanitized for those.
type Ride struct {
	ID               uuid.UUID    `json:"id"`
	PassengerID      uuid.UUID    `json:"passenger_id"`
	DriverID         *uuid.UUID   `json:"driver_id,omitempty"`
	Status           Status       `json:"status"`
	VehicleClass     string       `json:"vehicle_class"`
	PaymentMethod    string       `json:"payment_method"`
	PickupAddress    string       `json:"pickup_address"`
	PickupLatitude   float64      `json:"pickup_latitude"`
	PickupLongitude  float64      `json:"pickup_longitude"`
	DropoffAddress   string       `json:"dropoff_address"`
	DropoffLatitude  float64      `json:"dropoff_latitude"`
	DropoffLongitude float64      `json:"dropoff_longitude"`
	DistanceMeters   int          `json:"distance_meters"`
	DurationSeconds  int          `json:"duration_seconds"`
	Fare             int64        `json:"fare"`
	OfferedPrice     *int64       `json:"offered_price,omitempty"`
	FinalPrice       int64        `json:"final_price"`
	StartCode        string       `json:"start_code,omitempty"`
	DriverETAMinutes *int         `json:"driver_eta_minutes,omitempty"`
	CancelledBy      *string      `json:"cancelled_by,omitempty"`
	CancelReason     *string      `json:"cancel_reason,omitempty"`
	PassengerRating  *RatingEntry `json:"passenger_rating,omitempty"` // passenger -> driver
	DriverRating     *RatingEntry `json:"driver_rating,omitempty"`    // driver -> passenger
	RequestedAt      time.Time    `json:"requested_at"`
	AcceptedAt       *time.Time   `json:"accepted_at,omitempty"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Sanitized returns a copy of the ride with the start code removed, for
// driver-facing payloads.
func (r *Ride) Sanitized() *Ride {
	clean := *r
	clean.StartCode = ""
	return &clean
}

// Terminal reports whether the ride can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CreateRideRequest is the payload for requesting a ride.
type CreateRideRequest struct {
	PickupAddress    string  `json:"pickup_address" binding:"required"`
	PickupLatitude   float64 `json:"pickup_latitude" binding:"latitude"`
	PickupLongitude  float64 `json:"pickup_longitude" binding:"longitude"`
	DropoffAddress   string  `json:"dropoff_address" binding:"required"`
	DropoffLatitude  float64 `json:"dropoff_latitude" binding:"latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude" binding:"longitude"`
	VehicleClass     string  `json:"vehicle_class" binding:"required,vehicle_class"`
	PaymentMethod    string  `json:"payment_method" binding:"omitempty,payment_method"` // defaults to cash
	OfferedPrice     *int64  `json:"offered_price,omitempty"`
}

// StartRideRequest carries the passenger's start code.
type StartRideRequest struct {
	Code string `json:"code" binding:"required"`
}

// CancelRideRequest carries an optional cancellation reason.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

// RateRideRequest is the payload for rating a completed ride.
type RateRideRequest struct {
	Stars   int    `json:"stars" binding:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty" binding:"max=500"`
}

// QuoteRequest asks for fare quotes between two addresses.
type QuoteRequest struct {
	PickupAddress  string `json:"pickup_address" binding:"required"`
	DropoffAddress string `json:"dropoff_address" binding:"required"`
}

// QuoteResponse returns fares for every vehicle class.
type QuoteResponse struct {
	DistanceMeters  int              `json:"distance_meters"`
	DurationSeconds int              `json:"duration_seconds"`
	Fares           map[string]int64 `json:"fares"`
}
