package dto

import "time"

// SubmitRequestRequest payload for a new matching request.
type SubmitRequestRequest struct {
	Area      string `json:"area"`
	TimeSlot  string `json:"time_slot"`
	GroupSize int    `json:"group_size"`
}

// MatchOutcomeResponse reports how a submission ended.
type MatchOutcomeResponse struct {
	Status    string `json:"status"` // "queued" or "matched"
	RequestID int64  `json:"request_id"`
	MatchID   *int64 `json:"match_id,omitempty"`
}

// PendingRequestResponse describes the caller's queued request.
type PendingRequestResponse struct {
	RequestID int64     `json:"request_id"`
	Area      string    `json:"area"`
	TimeSlot  string    `json:"time_slot"`
	GroupSize int       `json:"group_size"`
	CreatedAt time.Time `json:"created_at"`
}

// CancelResponse reports whether a pending request was removed.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
