package drivers

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

// Repository handles database operations for drivers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new drivers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const driverColumns = `
	id, name, phone, vehicle_type, vehicle_brand, vehicle_model,
	vehicle_color, vehicle_plate, vehicle_capacity, available, rating,
	rating_count, completed_rides, cancelled_rides, total_earnings,
	last_latitude, last_longitude, location_at, created_at, updated_at
`

func scanDriver(row pgx.Row) (*Driver, error) {
	d := &Driver{}
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.VehicleType,
		&d.VehicleBrand,
		&d.VehicleModel,
		&d.VehicleColor,
		&d.VehiclePlate,
		&d.VehicleCapacity,
		&d.Available,
		&d.Rating,
		&d.RatingCount,
		&d.CompletedRides,
		&d.CancelledRides,
		&d.TotalEarnings,
		&d.LastLatitude,
		&d.LastLongitude,
		&d.LocationAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("driver not found")
		}
		return nil, fmt.Errorf("failed to scan driver: %w", err)
	}
	return d, nil
}

// GetByID retrieves a driver by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return scanDriver(r.db.QueryRow(ctx, query, id))
}

// SetAvailability toggles whether the driver accepts new rides
func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	query := `UPDATE drivers SET available = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, available, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set driver availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("driver not found")
	}
	return nil
}

// UpdateLocation stores the driver's last reported position
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	query := `
		UPDATE drivers
		SET last_latitude = $1, last_longitude = $2, location_at = $3, updated_at = $3
		WHERE id = $4
	`

	tag, err := r.db.Exec(ctx, query, lat, lng, at, id)
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("driver not found")
	}
	return nil
}

// RecordCompletion increments the driver's completed ride counter and earnings
func (r *Repository) RecordCompletion(ctx context.Context, id uuid.UUID, earnings int64) error {
	query := `
		UPDATE drivers
		SET completed_rides = completed_rides + 1,
			total_earnings = total_earnings + $1,
			updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(ctx, query, earnings, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record driver completion: %w", err)
	}
	return nil
}

// RecordCancellation increments the driver's cancellation counter
func (r *Repository) RecordCancellation(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE drivers
		SET cancelled_rides = cancelled_rides + 1, updated_at = $1
		WHERE id = $2
	`

	_, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record driver cancellation: %w", err)
	}
	return nil
}

// ApplyRating folds a new star rating into the driver's running average in a
// single UPDATE so concurrent ratings cannot lose increments.
func (r *Repository) ApplyRating(ctx context.Context, id uuid.UUID, stars int) error {
	query := `
		UPDATE drivers
		SET rating = (rating * rating_count + $1) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(ctx, query, stars, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to apply driver rating: %w", err)
	}
	return nil
}

// ListRideIDs returns the driver's ride history, newest first
func (r *Repository) ListRideIDs(ctx context.Context, id uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM rides
		WHERE driver_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver rides: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var rideID uuid.UUID
		if err := rows.Scan(&rideID); err != nil {
			return nil, fmt.Errorf("failed to scan ride id: %w", err)
		}
		ids = append(ids, rideID)
	}
	return ids, rows.Err()
}
