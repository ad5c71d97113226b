package dto

import (
	"time"

	"github.com/spec-kit/meetup-service/internal/domain"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Gender   domain.Gender `json:"gender"`
	Age      int           `json:"age"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse describes a user profile.
type UserResponse struct {
	ID        int64         `json:"id"`
	Username  string        `json:"username"`
	Gender    domain.Gender `json:"gender"`
	Age       int           `json:"age"`
	CreatedAt time.Time     `json:"created_at"`
}
