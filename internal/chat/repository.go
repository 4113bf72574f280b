package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chat transcripts
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new chat repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create appends a message to the ride transcript
func (r *Repository) Create(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO chat_messages (id, ride_id, sender_id, sender_role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.RideID, msg.SenderID, msg.SenderRole, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store chat message: %w", err)
	}
	return nil
}

// ListByRide returns the ride transcript in chronological order
func (r *Repository) ListByRide(ctx context.Context, rideID uuid.UUID, limit, offset int) ([]*Message, error) {
	query := `
		SELECT id, ride_id, sender_id, sender_role, content, created_at
		FROM chat_messages
		WHERE ride_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, rideID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.RideID, &msg.SenderID, &msg.SenderRole, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
