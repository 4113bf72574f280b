package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickride/quickride/pkg/common"
)

// Repository handles database operations for rides
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rides repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create persists a new ride request
func (r *Repository) Create(ctx context.Context, ride *Ride) error {
	query := `
		INSERT INTO rides (
			id, passenger_id, status, vehicle_class, payment_method,
			pickup_address, pickup_latitude, pickup_longitude,
			dropoff_address, dropoff_latitude, dropoff_longitude,
			distance_meters, duration_seconds, fare, offered_price,
			final_price, start_code, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.PassengerID,
		ride.Status,
		ride.VehicleClass,
		ride.PaymentMethod,
		ride.PickupAddress,
		ride.PickupLatitude,
		ride.PickupLongitude,
		ride.DropoffAddress,
		ride.DropoffLatitude,
		ride.DropoffLongitude,
		ride.DistanceMeters,
		ride.DurationSeconds,
		ride.Fare,
		ride.OfferedPrice,
		ride.FinalPrice,
		ride.StartCode,
		ride.RequestedAt,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

const rideColumns = `
	id, passenger_id, driver_id, status, vehicle_class, payment_method,
	pickup_address, pickup_latitude, pickup_longitude,
	dropoff_address, dropoff_latitude, dropoff_longitude,
	distance_meters, duration_seconds, fare, offered_price, final_price,
	start_code, driver_eta_minutes, cancelled_by, cancel_reason,
	passenger_rating_stars, passenger_rating_comment, passenger_rated_at,
	driver_rating_stars, driver_rating_comment, driver_rated_at,
	requested_at, accepted_at, started_at, completed_at, cancelled_at,
	created_at, updated_at
`

func scanRide(row pgx.Row) (*Ride, error) {
	ride := &Ride{}
	var (
		pStars, dStars     *int
		pComment, dComment *string
		pAt, dAt           *time.Time
	)

	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&ride.DriverID,
		&ride.Status,
		&ride.VehicleClass,
		&ride.PaymentMethod,
		&ride.PickupAddress,
		&ride.PickupLatitude,
		&ride.PickupLongitude,
		&ride.DropoffAddress,
		&ride.DropoffLatitude,
		&ride.DropoffLongitude,
		&ride.DistanceMeters,
		&ride.DurationSeconds,
		&ride.Fare,
		&ride.OfferedPrice,
		&ride.FinalPrice,
		&ride.StartCode,
		&ride.DriverETAMinutes,
		&ride.CancelledBy,
		&ride.CancelReason,
		&pStars,
		&pComment,
		&pAt,
		&dStars,
		&dComment,
		&dAt,
		&ride.RequestedAt,
		&ride.AcceptedAt,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("ride not found")
		}
		return nil, fmt.Errorf("failed to scan ride: %w", err)
	}

	if pStars != nil && pAt != nil {
		entry := RatingEntry{Stars: *pStars, RatedAt: *pAt}
		if pComment != nil {
			entry.Comment = *pComment
		}
		ride.PassengerRating = &entry
	}
	if dStars != nil && dAt != nil {
		entry := RatingEntry{Stars: *dStars, RatedAt: *dAt}
		if dComment != nil {
			entry.Comment = *dComment
		}
		ride.DriverRating = &entry
	}

	return ride, nil
}

// GetByID retrieves a ride by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.db.QueryRow(ctx, query, id))
}

// GetByIDForDriver retrieves a ride only if it is assigned to the driver.
// A ride owned by another driver reads as not found.
func (r *Repository) GetByIDForDriver(ctx context.Context, id, driverID uuid.UUID) (*Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 AND driver_id = $2`
	return scanRide(r.db.QueryRow(ctx, query, id, driverID))
}

// Confirm atomically transitions a ride from pending to accepted in a single
// UPDATE with a WHERE status guard. Returns false if the ride was already
// taken; exactly one of any set of concurrent callers sees true.
func (r *Repository) Confirm(ctx context.Context, rideID, driverID uuid.UUID, etaMinutes *int, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, driver_eta_minutes = $3, accepted_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	tag, err := r.db.Exec(ctx, query,
		StatusAccepted, driverID, etaMinutes, at, rideID, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Start atomically transitions accepted -> ongoing, scoped to the driver
func (r *Repository) Start(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, StatusOngoing, at, rideID, driverID, StatusAccepted)
	if err != nil {
		return false, fmt.Errorf("failed to start ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete atomically transitions ongoing -> completed, scoped to the driver
func (r *Repository) Complete(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, StatusCompleted, at, rideID, driverID, StatusOngoing)
	if err != nil {
		return false, fmt.Errorf("failed to complete ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel atomically cancels the ride unless it is already terminal
func (r *Repository) Cancel(ctx context.Context, rideID uuid.UUID, cancelledBy string, reason *string, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, cancelled_by = $2, cancel_reason = $3, cancelled_at = $4, updated_at = $4
		WHERE id = $5 AND status NOT IN ($6, $7)
	`
	tag, err := r.db.Exec(ctx, query,
		StatusCancelled, cancelledBy, reason, at, rideID, StatusCompleted, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetRating writes one party's rating slot, overwriting any previous entry
func (r *Repository) SetRating(ctx context.Context, rideID uuid.UUID, party string, entry RatingEntry) error {
	var query string
	switch party {
	case PartyPassenger:
		query = `
			UPDATE rides
			SET passenger_rating_stars = $1, passenger_rating_comment = $2,
				passenger_rated_at = $3, updated_at = $3
			WHERE id = $4
		`
	case PartyDriver:
		query = `
			UPDATE rides
			SET driver_rating_stars = $1, driver_rating_comment = $2,
				driver_rated_at = $3, updated_at = $3
			WHERE id = $4
		`
	default:
		return fmt.Errorf("unknown rating party %q", party)
	}

	var comment *string
	if entry.Comment != "" {
		comment = &entry.Comment
	}

	tag, err := r.db.Exec(ctx, query, entry.Stars, comment, entry.RatedAt, rideID)
	if err != nil {
		return fmt.Errorf("failed to set ride rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("ride not found")
	}
	return nil
}
