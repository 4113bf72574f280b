package passengers

import (
	"time"

	"github.com/google/uuid"
)

// Passenger is a rider account with aggregate trip statistics.
type Passenger struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Rating         float64   `json:"rating"`
	RatingCount    int       `json:"rating_count"`
	CompletedRides int       `json:"completed_rides"`
	CancelledRides int       `json:"cancelled_rides"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
