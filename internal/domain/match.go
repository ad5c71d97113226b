package domain

import "time"

// Match is a confirmed pairing of exactly two requests from opposite-gender
// requesters. Matches are immutable history: never updated, never deleted.
type Match struct {
	ID         int64
	RequestIDA int64
	RequestIDB int64
	MatchedAt  time.Time
}

// MatchView is a match resolved from one participant's perspective,
// attributing "my size" vs "their size" by request ownership.
type MatchView struct {
	MatchID              int64
	Area                 string
	TimeSlot             string
	CounterpartUserID    int64
	CounterpartUsername  string
	CounterpartGroupSize int
	MyGroupSize          int
	MatchedAt            time.Time
}
