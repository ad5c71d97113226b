package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/events"
)

// fakeStore is a shared in-memory backing store for the repository fakes.
// The fake tx runner executes closures directly, so the fakes behave like a
// single-threaded database.
type fakeStore struct {
	mu sync.Mutex

	users    map[int64]*domain.User
	requests map[int64]*domain.Request
	matches  map[int64]*domain.Match
	messages []*domain.Message

	nextUserID    int64
	nextRequestID int64
	nextMatchID   int64
	nextMessageID int64

	clock time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*domain.User),
		requests: make(map[int64]*domain.Request),
		matches:  make(map[int64]*domain.Match),
		clock:    time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) addUser(username string, gender domain.Gender) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := &domain.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: "x",
		Gender:       gender,
		Age:          25,
		CreatedAt:    s.tick(),
	}
	s.users[user.ID] = user
	return user
}

// storeSnapshot captures request and match state so a fake tx runner can
// roll an attempt back the way a real transaction would.
type storeSnapshot struct {
	requests      map[int64]*domain.Request
	matches       map[int64]*domain.Match
	nextRequestID int64
	nextMatchID   int64
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		requests:      make(map[int64]*domain.Request, len(s.requests)),
		matches:       make(map[int64]*domain.Match, len(s.matches)),
		nextRequestID: s.nextRequestID,
		nextMatchID:   s.nextMatchID,
	}
	for id, req := range s.requests {
		copied := *req
		snap.requests[id] = &copied
	}
	for id, match := range s.matches {
		copied := *match
		snap.matches[id] = &copied
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = snap.requests
	s.matches = snap.matches
	s.nextRequestID = snap.nextRequestID
	s.nextMatchID = snap.nextMatchID
}

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.tick()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeRequestRepo struct{ store *fakeStore }

func (r *fakeRequestRepo) Insert(ctx context.Context, request *domain.Request) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRequestID++
	request.ID = s.nextRequestID
	request.Status = domain.RequestStatusPending
	request.CreatedAt = s.tick()
	stored := *request
	s.requests[request.ID] = &stored
	return nil
}

func (r *fakeRequestRepo) FindPendingByUser(ctx context.Context, userID int64) (*domain.Request, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.UserID == userID && req.Status == domain.RequestStatusPending {
			copied := *req
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRequestRepo) FindOldestCompatible(ctx context.Context, area, timeSlot string, excludeUserID int64, gender domain.Gender) (*domain.Request, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*domain.Request
	for _, req := range s.requests {
		if req.Status != domain.RequestStatusPending {
			continue
		}
		if req.Area != area || req.TimeSlot != timeSlot || req.UserID == excludeUserID {
			continue
		}
		owner, ok := s.users[req.UserID]
		if !ok || owner.Gender != gender {
			continue
		}
		candidates = append(candidates, req)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	copied := *candidates[0]
	return &copied, nil
}

func (r *fakeRequestRepo) MarkMatched(ctx context.Context, requestIDA, requestIDB int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, id := range []int64{requestIDA, requestIDB} {
		req, ok := s.requests[id]
		if ok && req.Status == domain.RequestStatusPending {
			req.Status = domain.RequestStatusMatched
			updated++
		}
	}
	if updated != 2 {
		return fmt.Errorf("mark matched: expected 2 pending requests, updated %d", updated)
	}
	return nil
}

func (r *fakeRequestRepo) DeletePending(ctx context.Context, requestID, userID int64) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok || req.UserID != userID || req.Status != domain.RequestStatusPending {
		return false, nil
	}
	delete(s.requests, requestID)
	return true, nil
}

type fakeMatchRepo struct{ store *fakeStore }

func (r *fakeMatchRepo) Create(ctx context.Context, match *domain.Match) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatchID++
	match.ID = s.nextMatchID
	match.MatchedAt = s.tick()
	stored := *match
	s.matches[match.ID] = &stored
	return nil
}

func (r *fakeMatchRepo) ListViewsForUser(ctx context.Context, userID int64) ([]domain.MatchView, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var views []domain.MatchView
	for _, match := range s.matches {
		reqA := s.requests[match.RequestIDA]
		reqB := s.requests[match.RequestIDB]
		if reqA == nil || reqB == nil {
			continue
		}
		if reqA.UserID != userID && reqB.UserID != userID {
			continue
		}
		mine, theirs := reqA, reqB
		if reqB.UserID == userID {
			mine, theirs = reqB, reqA
		}
		counterpart := s.users[theirs.UserID]
		views = append(views, domain.MatchView{
			MatchID:              match.ID,
			Area:                 mine.Area,
			TimeSlot:             mine.TimeSlot,
			CounterpartUserID:    counterpart.ID,
			CounterpartUsername:  counterpart.Username,
			CounterpartGroupSize: theirs.GroupSize,
			MyGroupSize:          mine.GroupSize,
			MatchedAt:            match.MatchedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].MatchedAt.Equal(views[j].MatchedAt) {
			return views[i].MatchedAt.After(views[j].MatchedAt)
		}
		return views[i].MatchID > views[j].MatchID
	})
	return views, nil
}

func (r *fakeMatchRepo) ParticipantUserIDs(ctx context.Context, matchID int64) (int64, int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	match, ok := s.matches[matchID]
	if !ok {
		return 0, 0, pgx.ErrNoRows
	}
	reqA := s.requests[match.RequestIDA]
	reqB := s.requests[match.RequestIDB]
	if reqA == nil || reqB == nil {
		return 0, 0, pgx.ErrNoRows
	}
	return reqA.UserID, reqB.UserID, nil
}

type fakeMessageRepo struct{ store *fakeStore }

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = s.tick()
	if sender, ok := s.users[msg.SenderUserID]; ok {
		msg.SenderUsername = sender.Username
	}
	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) ListByMatch(ctx context.Context, matchID int64, limit, offset int) ([]domain.Message, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Message
	for _, msg := range s.messages {
		if msg.MatchID == matchID {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// fakeTxRunner executes the closure directly. The fakes have no real
// transactions; tests exercise the matcher's logic, not isolation.
type fakeTxRunner struct{}

func (fakeTxRunner) InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
