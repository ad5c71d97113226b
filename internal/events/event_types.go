package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestQueued    EventType = "request_queued"
	EventRequestCancelled EventType = "request_cancelled"
	EventMatchCreated     EventType = "match_created"
	EventMessageSent      EventType = "message_sent"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestQueuedPayload payload.
type RequestQueuedPayload struct {
	RequestID int64  `json:"request_id"`
	Area      string `json:"area"`
	TimeSlot  string `json:"time_slot"`
	GroupSize int    `json:"group_size"`
}

// RequestCancelledPayload payload.
type RequestCancelledPayload struct {
	RequestID int64 `json:"request_id"`
}

// MatchCreatedPayload payload. UserIDA owns the older request, UserIDB the
// request whose submission triggered the match.
type MatchCreatedPayload struct {
	MatchID    int64  `json:"match_id"`
	RequestIDA int64  `json:"request_id_a"`
	RequestIDB int64  `json:"request_id_b"`
	UserIDA    int64  `json:"user_id_a"`
	UserIDB    int64  `json:"user_id_b"`
	Area       string `json:"area"`
	TimeSlot   string `json:"time_slot"`
}

// MessageSentPayload payload.
type MessageSentPayload struct {
	MatchID     int64  `json:"match_id"`
	MessageID   int64  `json:"message_id"`
	SenderID    int64  `json:"sender_id"`
	BodyPreview string `json:"body_preview"`
}
