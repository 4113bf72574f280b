package routes

import (
	"context"
	"errors"
)

// ErrNoRoute is returned when the provider cannot find a drivable route
// between the two addresses.
var ErrNoRoute = errors.New("no route between addresses")

// RouteEstimate is the travel estimate between two addresses.
type RouteEstimate struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// Provider resolves driving distance and duration between two addresses.
type Provider interface {
	Route(ctx context.Context, origin, destination string) (*RouteEstimate, error)
}
