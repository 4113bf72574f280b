package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Candidate is an available driver considered for an offer. Coordinates are
// nullable: a driver that never reported a position is still listed and
// filtered out later.
type Candidate struct {
	DriverID  uuid.UUID
	Latitude  *float64
	Longitude *float64
}

// Repository reads dispatch candidates from the driver table
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new dispatch repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListAvailableByClass returns all available drivers of the exact vehicle
// class. This is a full scan; fleet sizes here do not justify a spatial
// index yet, and a PostGIS radius query could replace it without changing
// the filtering semantics.
func (r *Repository) ListAvailableByClass(ctx context.Context, vehicleClass string) ([]*Candidate, error) {
	query := `
		SELECT id, last_latitude, last_longitude
		FROM drivers
		WHERE available = TRUE AND vehicle_type = $1
	`

	rows, err := r.db.Query(ctx, query, vehicleClass)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]*Candidate, 0)
	for rows.Next() {
		c := &Candidate{}
		if err := rows.Scan(&c.DriverID, &c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
