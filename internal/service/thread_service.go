package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/events"
	"github.com/spec-kit/meetup-service/internal/repository"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

// ThreadService manages the private two-party message thread of a match.
type ThreadService struct {
	matches    repository.MatchRepository
	messages   repository.MessageRepository
	dispatcher events.Dispatcher
}

// ThreadDependencies bundles collaborators for the thread service.
type ThreadDependencies struct {
	MatchRepo   repository.MatchRepository
	MessageRepo repository.MessageRepository
	Dispatcher  events.Dispatcher
}

// NewThreadService constructs the service.
func NewThreadService(deps ThreadDependencies) *ThreadService {
	return &ThreadService{
		matches:    deps.MatchRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
	}
}

// AppendMessage stores a message in the match's thread. The sender must be
// one of the two users behind the match's requests; violations are rejected
// before anything is stored.
func (s *ThreadService) AppendMessage(ctx context.Context, matchID int64, sender *domain.User, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body must not be empty", nil)
	}

	if err := s.requireParticipant(ctx, matchID, sender.ID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		MatchID:        matchID,
		SenderUserID:   sender.ID,
		SenderUsername: sender.Username,
		Body:           body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.EventMessageSent,
		UserID: sender.ID,
		Payload: events.MessageSentPayload{
			MatchID:     matchID,
			MessageID:   msg.ID,
			SenderID:    sender.ID,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return msg, nil
}

// ListMessages returns the thread in insertion order. limit/offset keep the
// contract pageable; limit defaults to a served page size when unset.
func (s *ThreadService) ListMessages(ctx context.Context, matchID, callerID int64, limit, offset int) ([]domain.Message, error) {
	if err := s.requireParticipant(ctx, matchID, callerID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.ListByMatch(ctx, matchID, limit, offset)
}

func (s *ThreadService) requireParticipant(ctx context.Context, matchID, userID int64) error {
	userA, userB, err := s.matches.ParticipantUserIDs(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("match", map[string]any{"match_id": matchID})
		}
		return err
	}
	if userID != userA && userID != userB {
		return apperrors.NewForbidden("not a participant of this match")
	}
	return nil
}

func (s *ThreadService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
