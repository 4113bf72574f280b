package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the driver service depends on.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
	RecordCompletion(ctx context.Context, id uuid.UUID, earnings int64) error
	RecordCancellation(ctx context.Context, id uuid.UUID) error
	ApplyRating(ctx context.Context, id uuid.UUID, stars int) error
	ListRideIDs(ctx context.Context, id uuid.UUID, limit, offset int) ([]uuid.UUID, error)
}

// LocationCache is the fast-path store for driver positions.
type LocationCache interface {
	SetLocation(ctx context.Context, driverID uuid.UUID, loc Location) error
	GetLocation(ctx context.Context, driverID uuid.UUID) (*Location, error)
}
