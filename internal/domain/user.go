package domain

import "time"

// Gender enumerates requester genders. Matching is strictly cross-gender.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Opposite returns the only gender eligible as a match counterpart.
func (g Gender) Opposite() Gender {
	if g == GenderMale {
		return GenderFemale
	}
	return GenderMale
}

// Valid reports whether g is a known gender value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User is the domain model for registered members.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Gender       Gender
	Age          int
	CreatedAt    time.Time
}
