package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/meetup-service/internal/auth"
	"github.com/spec-kit/meetup-service/internal/config"
	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/persistence"
	"github.com/spec-kit/meetup-service/internal/repository"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

const (
	minPasswordLength = 8
	minAge            = 18
	maxAge            = 100
)

// AuthService handles registration, login and token issuance.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the token manager for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// RegisterInput describes a registration payload.
type RegisterInput struct {
	Username string
	Password string
	Gender   domain.Gender
	Age      int
}

// RegisterUser creates an account and returns a session token.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, string, time.Time, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("username required", nil)
	}
	if len(input.Password) < minPasswordLength {
		return nil, "", time.Time{}, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}
	if !input.Gender.Valid() {
		return nil, "", time.Time{}, apperrors.NewValidationError("unknown gender", map[string]any{"gender": input.Gender})
	}
	if input.Age < minAge || input.Age > maxAge {
		return nil, "", time.Time{}, apperrors.NewValidationError("age out of range", map[string]any{"age": input.Age})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Username:     input.Username,
		PasswordHash: hash,
		Gender:       input.Gender,
		Age:          input.Age,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if persistence.IsUniqueViolation(err, "users_username_key") {
			return nil, "", time.Time{}, apperrors.NewConflict("username already taken", map[string]any{"username": input.Username})
		}
		return nil, "", time.Time{}, err
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, expiresAt, nil
}

// LoginUser verifies credentials and returns a session token.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, expiresAt, nil
}
