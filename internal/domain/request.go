package domain

import "time"

// RequestStatus enumerates lifecycle states for matching requests.
// The only transition is PENDING -> MATCHED; cancellation deletes the row.
type RequestStatus string

const (
	RequestStatusPending RequestStatus = "PENDING"
	RequestStatusMatched RequestStatus = "MATCHED"
)

// Areas lists the meetup areas users can request.
var Areas = []string{"Ikebukuro", "Shinjuku", "Shibuya"}

// TimeSlots lists the bookable evening slots.
var TimeSlots = []string{"18:00-20:00", "20:00-22:00", "22:00-24:00", "24:00-26:00"}

// Party size bounds for a single request.
const (
	MinGroupSize = 1
	MaxGroupSize = 10
)

// ValidArea reports whether area is part of the fixed vocabulary.
func ValidArea(area string) bool {
	for _, a := range Areas {
		if a == area {
			return true
		}
	}
	return false
}

// ValidTimeSlot reports whether slot is part of the fixed vocabulary.
func ValidTimeSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// ValidGroupSize reports whether size is within the allowed party range.
func ValidGroupSize(size int) bool {
	return size >= MinGroupSize && size <= MaxGroupSize
}

// Request is a single user's open ask to be matched for an area and time slot.
// A user holds at most one PENDING request at any time.
type Request struct {
	ID        int64
	UserID    int64
	Area      string
	TimeSlot  string
	GroupSize int
	Status    RequestStatus
	CreatedAt time.Time
}
