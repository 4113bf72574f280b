package drivers

import (
	"time"

	"github.com/google/uuid"
)

// Driver is a vehicle operator fulfilling rides.
type Driver struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	VehicleType     string     `json:"vehicle_type"`
	VehicleBrand    string     `json:"vehicle_brand"`
	VehicleModel    string     `json:"vehicle_model"`
	VehicleColor    string     `json:"vehicle_color"`
	VehiclePlate    string     `json:"vehicle_plate"`
	VehicleCapacity int        `json:"vehicle_capacity"`
	Available       bool       `json:"available"`
	Rating          float64    `json:"rating"`
	RatingCount     int        `json:"rating_count"`
	CompletedRides  int        `json:"completed_rides"`
	CancelledRides  int        `json:"cancelled_rides"`
	TotalEarnings   int64      `json:"total_earnings"`
	LastLatitude    *float64   `json:"last_latitude,omitempty"`
	LastLongitude   *float64   `json:"last_longitude,omitempty"`
	LocationAt      *time.Time `json:"location_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Location is a driver's last reported position.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ReportedAt time.Time `json:"reported_at"`
}

// UpdateLocationRequest is the payload for a driver position report.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" binding:"latitude"`
	Longitude float64 `json:"longitude" binding:"longitude"`
}

// SetAvailabilityRequest toggles whether the driver accepts new rides.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}
