package passengers

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

// Repository handles database operations for passengers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new passengers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a passenger by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Passenger, error) {
	query := `
		SELECT id, name, phone, rating, rating_count, completed_rides,
			   cancelled_rides, created_at, updated_at
		FROM passengers
		WHERE id = $1
	`

	p := &Passenger{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Rating,
		&p.RatingCount,
		&p.CompletedRides,
		&p.CancelledRides,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("passenger not found")
		}
		return nil, fmt.Errorf("failed to get passenger: %w", err)
	}
	return p, nil
}

// RecordCompletion increments the passenger's completed ride counter
func (r *Repository) RecordCompletion(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE passengers
		SET completed_rides = completed_rides + 1, updated_at = $1
		WHERE id = $2
	`

	_, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record passenger completion: %w", err)
	}
	return nil
}

// RecordCancellation increments the passenger's cancellation counter
func (r *Repository) RecordCancellation(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE passengers
		SET cancelled_rides = cancelled_rides + 1, updated_at = $1
		WHERE id = $2
	`

	_, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record passenger cancellation: %w", err)
	}
	return nil
}

// ApplyRating folds a new star rating into the passenger's running average
// in a single UPDATE.
func (r *Repository) ApplyRating(ctx context.Context, id uuid.UUID, stars int) error {
	query := `
		UPDATE passengers
		SET rating = (rating * rating_count + $1) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(ctx, query, stars, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to apply passenger rating: %w", err)
	}
	return nil
}

// ListRideIDs returns the passenger's ride history, newest first
func (r *Repository) ListRideIDs(ctx context.Context, id uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM rides
		WHERE passenger_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list passenger rides: %w", err)
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
