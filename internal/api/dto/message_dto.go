package dto

import "time"

// SendMessageRequest payload.
type SendMessageRequest struct {
	Body string `json:"body"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	ID             int64     `json:"id"`
	MatchID        int64     `json:"match_id"`
	SenderUserID   int64     `json:"sender_user_id"`
	SenderUsername string    `json:"sender_username"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
