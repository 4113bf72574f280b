package chat

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength bounds a single chat message.
const MaxMessageLength = 500

// Message is one entry in a ride's chat transcript.
type Message struct {
	ID         uuid.UUID `json:"id"`
	RideID     uuid.UUID `json:"ride_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderRole string    `json:"sender_role"` // passenger, driver or system
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendMessageRequest is the payload for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=500"`
}
