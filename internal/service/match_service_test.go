package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/events"
	"github.com/spec-kit/meetup-service/internal/observability"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

type matchFixture struct {
	store      *fakeStore
	service    *MatchService
	dispatcher *recordingDispatcher
	metrics    *observability.Metrics
}

func newMatchFixture() *matchFixture {
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewMatchService(MatchDependencies{
		UserRepo:    &fakeUserRepo{store: store},
		RequestRepo: &fakeRequestRepo{store: store},
		MatchRepo:   &fakeMatchRepo{store: store},
		Tx:          fakeTxRunner{},
		ViewCache:   nil,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})
	return &matchFixture{store: store, service: svc, dispatcher: dispatcher, metrics: metrics}
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Code
}

func TestRequestMatchQueuesWhenNoCounterpart(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)

	outcome, err := f.service.RequestMatch(context.Background(), alice.ID, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2,
	})
	if err != nil {
		t.Fatalf("RequestMatch: %v", err)
	}
	if outcome.Matched {
		t.Fatal("expected queued outcome, got matched")
	}
	if outcome.RequestID == 0 {
		t.Fatal("expected request id to be assigned")
	}

	pending, err := f.service.GetPendingRequest(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("GetPendingRequest: %v", err)
	}
	if pending == nil || pending.ID != outcome.RequestID {
		t.Fatalf("pending request = %+v, want id %d", pending, outcome.RequestID)
	}

	queued := f.dispatcher.byType(events.EventRequestQueued)
	if len(queued) != 1 {
		t.Fatalf("got %d request_queued events, want 1", len(queued))
	}
}

func TestRequestMatchPairsOldestCompatibleFirst(t *testing.T) {
	f := newMatchFixture()
	first := f.store.addUser("first-woman", domain.GenderFemale)
	second := f.store.addUser("second-woman", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	input := MatchRequestInput{Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2}
	if _, err := f.service.RequestMatch(context.Background(), first.ID, input); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.service.RequestMatch(context.Background(), second.ID, input); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	outcome, err := f.service.RequestMatch(context.Background(), bob.ID, input)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !outcome.Matched {
		t.Fatal("expected bob to match")
	}

	views, err := f.service.MatchesForUser(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("MatchesForUser: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d matches, want 1", len(views))
	}
	if views[0].CounterpartUserID != first.ID {
		t.Errorf("counterpart = %d, want oldest waiter %d", views[0].CounterpartUserID, first.ID)
	}

	// The younger request is untouched and still waiting.
	pending, err := f.service.GetPendingRequest(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetPendingRequest: %v", err)
	}
	if pending == nil {
		t.Fatal("second woman should still be pending")
	}

	// The matched pair is out of the pool on both sides.
	if p, _ := f.service.GetPendingRequest(context.Background(), first.ID); p != nil {
		t.Errorf("first woman still pending after match: %+v", p)
	}
	if p, _ := f.service.GetPendingRequest(context.Background(), bob.ID); p != nil {
		t.Errorf("bob still pending after match: %+v", p)
	}
}

func TestRequestMatchSkipsSameGender(t *testing.T) {
	f := newMatchFixture()
	manA := f.store.addUser("man-a", domain.GenderMale)
	manB := f.store.addUser("man-b", domain.GenderMale)

	input := MatchRequestInput{Area: "Shibuya", TimeSlot: "18:00-20:00", GroupSize: 1}
	if _, err := f.service.RequestMatch(context.Background(), manA.ID, input); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	outcome, err := f.service.RequestMatch(context.Background(), manB.ID, input)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if outcome.Matched {
		t.Fatal("same-gender requests must not pair")
	}
}

func TestRequestMatchRequiresSameAreaAndSlot(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	if _, err := f.service.RequestMatch(context.Background(), alice.ID, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 1,
	}); err != nil {
		t.Fatalf("alice submit: %v", err)
	}

	for _, input := range []MatchRequestInput{
		{Area: "Shinjuku", TimeSlot: "20:00-22:00", GroupSize: 1},
		{Area: "Ikebukuro", TimeSlot: "22:00-24:00", GroupSize: 1},
	} {
		outcome, err := f.service.RequestMatch(context.Background(), bob.ID, input)
		if err != nil {
			t.Fatalf("bob submit %+v: %v", input, err)
		}
		if outcome.Matched {
			t.Fatalf("requests with differing area or slot must not pair: %+v", input)
		}
		if _, err := f.service.CancelRequest(context.Background(), bob.ID, outcome.RequestID); err != nil {
			t.Fatalf("cleanup cancel: %v", err)
		}
	}
}

func TestRequestMatchIgnoresGroupSize(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	if _, err := f.service.RequestMatch(context.Background(), alice.ID, MatchRequestInput{
		Area: "Shinjuku", TimeSlot: "24:00-26:00", GroupSize: 9,
	}); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	outcome, err := f.service.RequestMatch(context.Background(), bob.ID, MatchRequestInput{
		Area: "Shinjuku", TimeSlot: "24:00-26:00", GroupSize: 1,
	})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !outcome.Matched {
		t.Fatal("group sizes must not block pairing")
	}

	views, err := f.service.MatchesForUser(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("MatchesForUser: %v", err)
	}
	if views[0].MyGroupSize != 1 || views[0].CounterpartGroupSize != 9 {
		t.Errorf("group sizes = mine %d theirs %d, want 1 and 9", views[0].MyGroupSize, views[0].CounterpartGroupSize)
	}
}

func TestRequestMatchRejectsSecondPending(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)

	input := MatchRequestInput{Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2}
	if _, err := f.service.RequestMatch(context.Background(), alice.ID, input); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.service.RequestMatch(context.Background(), alice.ID, input)
	if err == nil {
		t.Fatal("second submit should fail")
	}
	if code := errorCode(t, err); code != "ALREADY_PENDING" {
		t.Errorf("code = %s, want ALREADY_PENDING", code)
	}
}

func TestRequestMatchValidation(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)

	cases := []struct {
		name  string
		input MatchRequestInput
	}{
		{"unknown area", MatchRequestInput{Area: "Akihabara", TimeSlot: "20:00-22:00", GroupSize: 2}},
		{"unknown slot", MatchRequestInput{Area: "Ikebukuro", TimeSlot: "08:00-10:00", GroupSize: 2}},
		{"group too small", MatchRequestInput{Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 0}},
		{"group too large", MatchRequestInput{Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.RequestMatch(context.Background(), alice.ID, tc.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if code := errorCode(t, err); code != "VALIDATION_FAILED" {
				t.Errorf("code = %s, want VALIDATION_FAILED", code)
			}
		})
	}

	// Nothing was queued by the rejected submissions.
	if p, _ := f.service.GetPendingRequest(context.Background(), alice.ID); p != nil {
		t.Errorf("pending request after rejected input: %+v", p)
	}
}

func TestRequestMatchUnknownUser(t *testing.T) {
	f := newMatchFixture()
	_, err := f.service.RequestMatch(context.Background(), 999, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2,
	})
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	if code := errorCode(t, err); code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestCancelRequestLifecycle(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	input := MatchRequestInput{Area: "Shibuya", TimeSlot: "22:00-24:00", GroupSize: 3}
	outcome, err := f.service.RequestMatch(context.Background(), alice.ID, input)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Only the owner can remove the request.
	cancelled, err := f.service.CancelRequest(context.Background(), bob.ID, outcome.RequestID)
	if err != nil {
		t.Fatalf("cancel as non-owner: %v", err)
	}
	if cancelled {
		t.Fatal("non-owner cancel must be ineffective")
	}

	cancelled, err = f.service.CancelRequest(context.Background(), alice.ID, outcome.RequestID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("owner cancel of pending request should succeed")
	}
	if got := f.dispatcher.byType(events.EventRequestCancelled); len(got) != 1 {
		t.Errorf("got %d request_cancelled events, want 1", len(got))
	}

	// Second cancel is a no-op.
	cancelled, err = f.service.CancelRequest(context.Background(), alice.ID, outcome.RequestID)
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if cancelled {
		t.Fatal("repeat cancel must report false")
	}

	// A user with no pending request can queue again.
	if _, err := f.service.RequestMatch(context.Background(), alice.ID, input); err != nil {
		t.Fatalf("resubmit after cancel: %v", err)
	}
}

func TestCancelAfterMatchIsIneffective(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	input := MatchRequestInput{Area: "Ikebukuro", TimeSlot: "18:00-20:00", GroupSize: 2}
	aliceOutcome, err := f.service.RequestMatch(context.Background(), alice.ID, input)
	if err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	bobOutcome, err := f.service.RequestMatch(context.Background(), bob.ID, input)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !bobOutcome.Matched {
		t.Fatal("expected match")
	}

	cancelled, err := f.service.CancelRequest(context.Background(), alice.ID, aliceOutcome.RequestID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled {
		t.Fatal("cancel after match must be ineffective")
	}

	// The match record survives.
	views, err := f.service.MatchesForUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("MatchesForUser: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d matches after attempted cancel, want 1", len(views))
	}
}

func TestMatchViewOrientation(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	if _, err := f.service.RequestMatch(context.Background(), alice.ID, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 4,
	}); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	outcome, err := f.service.RequestMatch(context.Background(), bob.ID, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2,
	})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !outcome.Matched {
		t.Fatal("expected match")
	}

	aliceViews, err := f.service.MatchesForUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("alice views: %v", err)
	}
	bobViews, err := f.service.MatchesForUser(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("bob views: %v", err)
	}
	if len(aliceViews) != 1 || len(bobViews) != 1 {
		t.Fatalf("view counts = %d and %d, want 1 and 1", len(aliceViews), len(bobViews))
	}

	av, bv := aliceViews[0], bobViews[0]
	if av.CounterpartUsername != "bob" || av.MyGroupSize != 4 || av.CounterpartGroupSize != 2 {
		t.Errorf("alice view = %+v", av)
	}
	if bv.CounterpartUsername != "alice" || bv.MyGroupSize != 2 || bv.CounterpartGroupSize != 4 {
		t.Errorf("bob view = %+v", bv)
	}
	if av.MatchID != bv.MatchID {
		t.Errorf("match ids differ: %d vs %d", av.MatchID, bv.MatchID)
	}
}

func TestMatchCreatedEventAndMetrics(t *testing.T) {
	f := newMatchFixture()
	alice := f.store.addUser("alice", domain.GenderFemale)
	bob := f.store.addUser("bob", domain.GenderMale)

	input := MatchRequestInput{Area: "Shinjuku", TimeSlot: "20:00-22:00", GroupSize: 2}
	if _, err := f.service.RequestMatch(context.Background(), alice.ID, input); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	if _, err := f.service.RequestMatch(context.Background(), bob.ID, input); err != nil {
		t.Fatalf("bob submit: %v", err)
	}

	created := f.dispatcher.byType(events.EventMatchCreated)
	if len(created) != 1 {
		t.Fatalf("got %d match_created events, want 1", len(created))
	}
	payload, ok := created[0].Payload.(events.MatchCreatedPayload)
	if !ok {
		t.Fatalf("payload type %T", created[0].Payload)
	}
	if payload.UserIDA != alice.ID || payload.UserIDB != bob.ID {
		t.Errorf("payload users = %d/%d, want %d/%d", payload.UserIDA, payload.UserIDB, alice.ID, bob.ID)
	}
	if f.metrics.MatchCount() != 1 {
		t.Errorf("match count = %d, want 1", f.metrics.MatchCount())
	}
}

// replayTxRunner simulates a lost commit race: the first run of the closure
// is rolled back, the pool changes underneath, and the closure runs again,
// mirroring the serializable retry loop of the real runner.
type replayTxRunner struct {
	store           *fakeStore
	betweenAttempts func()
}

func (r *replayTxRunner) InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := r.store.snapshot()
	if err := fn(ctx); err != nil {
		return err
	}
	r.store.restore(snap)
	if r.betweenAttempts != nil {
		r.betweenAttempts()
	}
	return fn(ctx)
}

func TestRequestMatchRetryStartsClean(t *testing.T) {
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()

	alice := store.addUser("alice", domain.GenderFemale)
	bob := store.addUser("bob", domain.GenderMale)

	requests := &fakeRequestRepo{store: store}
	aliceReq := &domain.Request{UserID: alice.ID, Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2}
	if err := requests.Insert(context.Background(), aliceReq); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	// Attempt 1 pairs bob with alice but loses the commit race; before the
	// retry a competing submission claims alice's request.
	runner := &replayTxRunner{store: store, betweenAttempts: func() {
		store.mu.Lock()
		store.requests[aliceReq.ID].Status = domain.RequestStatusMatched
		store.mu.Unlock()
	}}

	svc := NewMatchService(MatchDependencies{
		UserRepo:    &fakeUserRepo{store: store},
		RequestRepo: requests,
		MatchRepo:   &fakeMatchRepo{store: store},
		Tx:          runner,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})

	outcome, err := svc.RequestMatch(context.Background(), bob.ID, MatchRequestInput{
		Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2,
	})
	if err != nil {
		t.Fatalf("RequestMatch: %v", err)
	}
	if outcome.Matched {
		t.Fatal("retry saw an empty pool; outcome must be queued")
	}
	if outcome.MatchID != 0 {
		t.Errorf("match id %d reported from a rolled-back attempt", outcome.MatchID)
	}

	pending, err := svc.GetPendingRequest(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("GetPendingRequest: %v", err)
	}
	if pending == nil || pending.ID != outcome.RequestID {
		t.Fatalf("pending = %+v, want id %d", pending, outcome.RequestID)
	}

	if got := dispatcher.byType(events.EventMatchCreated); len(got) != 0 {
		t.Errorf("got %d match_created events for an uncommitted match", len(got))
	}
	if got := dispatcher.byType(events.EventRequestQueued); len(got) != 1 {
		t.Errorf("got %d request_queued events, want 1", len(got))
	}
	if metrics.MatchCount() != 0 {
		t.Errorf("match count = %d, want 0", metrics.MatchCount())
	}
}

// Full walkthrough: two users meet in Ikebukuro, a third stays queued.
func TestIkebukuroEveningScenario(t *testing.T) {
	f := newMatchFixture()
	hanako := f.store.addUser("hanako", domain.GenderFemale)
	taro := f.store.addUser("taro", domain.GenderMale)
	jiro := f.store.addUser("jiro", domain.GenderMale)

	input := MatchRequestInput{Area: "Ikebukuro", TimeSlot: "20:00-22:00", GroupSize: 2}

	hanakoOutcome, err := f.service.RequestMatch(context.Background(), hanako.ID, input)
	if err != nil {
		t.Fatalf("hanako submit: %v", err)
	}
	if hanakoOutcome.Matched {
		t.Fatal("hanako should queue with an empty pool")
	}

	taroOutcome, err := f.service.RequestMatch(context.Background(), taro.ID, input)
	if err != nil {
		t.Fatalf("taro submit: %v", err)
	}
	if !taroOutcome.Matched {
		t.Fatal("taro should match hanako")
	}

	jiroOutcome, err := f.service.RequestMatch(context.Background(), jiro.ID, input)
	if err != nil {
		t.Fatalf("jiro submit: %v", err)
	}
	if jiroOutcome.Matched {
		t.Fatal("no woman left waiting; jiro should queue")
	}

	views, err := f.service.MatchesForUser(context.Background(), hanako.ID)
	if err != nil {
		t.Fatalf("hanako views: %v", err)
	}
	if len(views) != 1 || views[0].CounterpartUsername != "taro" {
		t.Fatalf("hanako views = %+v", views)
	}
	if views[0].Area != "Ikebukuro" || views[0].TimeSlot != "20:00-22:00" {
		t.Errorf("view slot = %s %s", views[0].Area, views[0].TimeSlot)
	}
}
