package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/meetup-service/internal/cache"
	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/events"
	"github.com/spec-kit/meetup-service/internal/observability"
	"github.com/spec-kit/meetup-service/internal/persistence"
	"github.com/spec-kit/meetup-service/internal/repository"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

// TxRunner executes a closure inside one serializable transaction. The
// matcher's check-insert-search-update sequence must not interleave with
// concurrent submissions, so everything it touches runs through this.
type TxRunner interface {
	InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MatchService is the matching engine: it queues requests, pairs them
// first-come-first-served across genders, and serves the match registry.
type MatchService struct {
	users      repository.UserRepository
	requests   repository.RequestRepository
	matches    repository.MatchRepository
	tx         TxRunner
	viewCache  *cache.MatchViewCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

// MatchDependencies bundles collaborators for the match service.
type MatchDependencies struct {
	UserRepo    repository.UserRepository
	RequestRepo repository.RequestRepository
	MatchRepo   repository.MatchRepository
	Tx          TxRunner
	ViewCache   *cache.MatchViewCache
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
}

// MatchRequestInput describes a submission payload.
type MatchRequestInput struct {
	Area      string
	TimeSlot  string
	GroupSize int
}

// MatchOutcome reports how a submission ended: queued behind no counterpart,
// or matched immediately against the oldest compatible pending request.
type MatchOutcome struct {
	Matched   bool
	RequestID int64
	MatchID   int64
}

// NewMatchService constructs the service.
func NewMatchService(deps MatchDependencies) *MatchService {
	return &MatchService{
		users:      deps.UserRepo,
		requests:   deps.RequestRepo,
		matches:    deps.MatchRepo,
		tx:         deps.Tx,
		viewCache:  deps.ViewCache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// RequestMatch submits a matching request for the user and eagerly searches
// for a counterpart. The pending-check, insert, counterpart search, match
// creation and status flip all commit as one serializable transaction:
// no concurrent submission can observe the counterpart as pending once it
// has been claimed here.
//
// Selection is greedy FIFO: the single oldest compatible pending request
// wins, and party sizes are not compared.
func (s *MatchService) RequestMatch(ctx context.Context, userID int64, input MatchRequestInput) (MatchOutcome, error) {
	if err := validateMatchInput(input); err != nil {
		return MatchOutcome{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchOutcome{}, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return MatchOutcome{}, err
	}

	var (
		request     *domain.Request
		counterpart *domain.Request
		match       *domain.Match
	)

	err = s.tx.InSerializableTx(ctx, func(ctx context.Context) error {
		// A serialization failure rolls the attempt back and runs this
		// closure again; nothing written by the discarded attempt may
		// survive into the outcome.
		request, counterpart, match = nil, nil, nil

		existing, err := s.requests.FindPendingByUser(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.NewAlreadyPending(existing.ID)
		}

		request = &domain.Request{
			UserID:    userID,
			Area:      input.Area,
			TimeSlot:  input.TimeSlot,
			GroupSize: input.GroupSize,
		}
		if err := s.requests.Insert(ctx, request); err != nil {
			return err
		}

		counterpart, err = s.requests.FindOldestCompatible(ctx, input.Area, input.TimeSlot, userID, user.Gender.Opposite())
		if err != nil {
			return err
		}
		if counterpart == nil {
			return nil
		}

		match = &domain.Match{
			RequestIDA: counterpart.ID,
			RequestIDB: request.ID,
		}
		if err := s.matches.Create(ctx, match); err != nil {
			return err
		}
		return s.requests.MarkMatched(ctx, counterpart.ID, request.ID)
	})
	if err != nil {
		// The partial unique index catches a same-user double submit even
		// outside serializable isolation.
		if persistence.IsUniqueViolation(err, "requests_one_pending_per_user") {
			return MatchOutcome{}, apperrors.NewAlreadyPending(0)
		}
		return MatchOutcome{}, err
	}

	if match == nil {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventRequestQueued,
			UserID: userID,
			Payload: events.RequestQueuedPayload{
				RequestID: request.ID,
				Area:      request.Area,
				TimeSlot:  request.TimeSlot,
				GroupSize: request.GroupSize,
			},
		})
		return MatchOutcome{RequestID: request.ID}, nil
	}

	s.metrics.RecordMatch()
	s.viewCache.Invalidate(ctx, userID, counterpart.UserID)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventMatchCreated,
		UserID: userID,
		Payload: events.MatchCreatedPayload{
			MatchID:    match.ID,
			RequestIDA: match.RequestIDA,
			RequestIDB: match.RequestIDB,
			UserIDA:    counterpart.UserID,
			UserIDB:    userID,
			Area:       request.Area,
			TimeSlot:   request.TimeSlot,
		},
	})
	return MatchOutcome{Matched: true, RequestID: request.ID, MatchID: match.ID}, nil
}

// GetPendingRequest returns the user's queued request, or nil when none.
func (s *MatchService) GetPendingRequest(ctx context.Context, userID int64) (*domain.Request, error) {
	return s.requests.FindPendingByUser(ctx, userID)
}

// CancelRequest hard-deletes the user's request while it is still pending.
// Cancelling a matched or unknown request is ineffective, not an error.
func (s *MatchService) CancelRequest(ctx context.Context, userID, requestID int64) (bool, error) {
	removed, err := s.requests.DeletePending(ctx, requestID, userID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventRequestCancelled,
			UserID:  userID,
			Payload: events.RequestCancelledPayload{RequestID: requestID},
		})
	}
	return removed, nil
}

// MatchesForUser lists the user's matches newest first, resolved from the
// caller's perspective.
func (s *MatchService) MatchesForUser(ctx context.Context, userID int64) ([]domain.MatchView, error) {
	if views, ok := s.viewCache.Get(ctx, userID); ok {
		return views, nil
	}

	views, err := s.matches.ListViewsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.viewCache.Set(ctx, userID, views)
	return views, nil
}

func validateMatchInput(input MatchRequestInput) error {
	if !domain.ValidArea(input.Area) {
		return apperrors.NewValidationError("unknown area", map[string]any{"area": input.Area})
	}
	if !domain.ValidTimeSlot(input.TimeSlot) {
		return apperrors.NewValidationError("unknown time slot", map[string]any{"time_slot": input.TimeSlot})
	}
	if !domain.ValidGroupSize(input.GroupSize) {
		return apperrors.NewValidationError("group size out of range", map[string]any{"group_size": input.GroupSize})
	}
	return nil
}

func (s *MatchService) publishEvent(ctx context.Context, event events.Event) {
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
