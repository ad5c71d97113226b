package dto

import "time"

// MatchViewResponse is a match resolved from the caller's perspective.
type MatchViewResponse struct {
	MatchID              int64     `json:"match_id"`
	Area                 string    `json:"area"`
	TimeSlot             string    `json:"time_slot"`
	CounterpartUserID    int64     `json:"counterpart_user_id"`
	CounterpartUsername  string    `json:"counterpart_username"`
	CounterpartGroupSize int       `json:"counterpart_group_size"`
	MyGroupSize          int       `json:"my_group_size"`
	MatchedAt            time.Time `json:"matched_at"`
}
