package domain

import "time"

// Message is one entry in a match's private thread. Append-only: messages
// are immutable once created and never deleted.
type Message struct {
	ID             int64
	MatchID        int64
	SenderUserID   int64
	SenderUsername string
	Body           string
	CreatedAt      time.Time
}
