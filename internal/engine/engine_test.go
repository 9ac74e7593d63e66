package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/matryer/is"

	"github.com/domino14/review_engine/internal/events"
	"github.com/domino14/review_engine/internal/resilience"
	"github.com/domino14/review_engine/internal/review"
	"github.com/domino14/review_engine/internal/sessionstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func makeSession(id string, n int) *review.Session {
	s := &review.Session{
		ID:         id,
		UserID:     "user-1",
		Mode:       review.ModeDueCards,
		StartTime:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		TotalCards: n,
		Cards:      make([]review.SessionCard, n),
	}
	for i := range s.Cards {
		s.Cards[i] = review.SessionCard{
			ID:        fmt.Sprintf("%s-sc-%d", id, i),
			SessionID: id,
			Card: review.Card{
				ID:   fmt.Sprintf("card-%d", i),
				Word: review.Word{Text: fmt.Sprintf("word%d", i), Translation: fmt.Sprintf("trans%d", i)},
			},
		}
	}
	return s
}

// fakeRemote behaves like a minimal review service: it keeps one live
// session and does the counting itself.
type fakeRemote struct {
	mu         sync.Mutex
	active     *review.Session
	activeGate chan struct{}
	startErr   error
	submitErrs []error
	submitGate chan struct{}
	completeErr error

	live       *review.Session
	submitted  []review.SubmitRequest
	starts     int
	completes  int
	lookups    int
}

func (f *fakeRemote) ActiveSession(ctx context.Context) (*review.Session, error) {
	f.mu.Lock()
	f.lookups++
	gate := f.activeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active.Clone(), nil
}

func (f *fakeRemote) StartSession(ctx context.Context, req *review.StartRequest) (*review.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.live = makeSession(fmt.Sprintf("s%d", f.starts), req.Limit)
	f.live.Mode = req.Mode
	return f.live.Clone(), nil
}

func (f *fakeRemote) SubmitReview(ctx context.Context, req *review.SubmitRequest) (*review.Session, error) {
	f.mu.Lock()
	gate := f.submitGate
	f.submitted = append(f.submitted, *req)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		return nil, err
	}
	for i := range f.live.Cards {
		c := &f.live.Cards[i]
		if c.Card.ID != req.CardID {
			continue
		}
		c.ReviewOutcome = review.Ptr(req.Outcome)
		c.WasCorrect = review.Ptr(req.Outcome.Correct())
		c.ResponseTime = req.ResponseTime
		f.live.CompletedCards++
		if req.Outcome.Correct() {
			f.live.CorrectAnswers++
		}
		f.live.CurrentCardIndex = min(i+1, len(f.live.Cards)-1)
		return f.live.Clone(), nil
	}
	return nil, connect.NewError(connect.CodeNotFound, errors.New("no such card"))
}

func (f *fakeRemote) CompleteSession(ctx context.Context, id string) (*review.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	final := f.live.Clone()
	final.IsCompleted = true
	end := final.StartTime.Add(5 * time.Minute)
	final.EndTime = &end
	return final, nil
}

func (f *fakeRemote) Statistics(ctx context.Context, from, to time.Time) (*review.Statistics, error) {
	return &review.Statistics{PeriodStart: from, PeriodEnd: to, TotalReviews: 12}, nil
}

func (f *fakeRemote) Preferences(ctx context.Context) (*review.Preferences, error) {
	return &review.Preferences{DailyReviewLimit: 50}, nil
}

func (f *fakeRemote) AvailableModes(ctx context.Context) ([]review.ModeInfo, error) {
	return []review.ModeInfo{{Mode: review.ModeDueCards, Available: true}}, nil
}

func (f *fakeRemote) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := make([]events.Type, len(r.events))
	for i, e := range r.events {
		ts[i] = e.Type
	}
	return ts
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func noWaitRetrier() *resilience.Retrier {
	return &resilience.Retrier{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

type fixture struct {
	engine *Engine
	remote *fakeRemote
	store  *sessionstore.Adapter
	clock  *fakeClock
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote: &fakeRemote{},
		store:  sessionstore.NewAdapter(sessionstore.NewMemoryStore()),
		clock:  &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		events: &recorder{},
	}
	ids := 0
	f.engine = New(f.remote, f.store,
		WithRetrier(noWaitRetrier()),
		WithNower(f.clock),
		WithUserID("user-1"),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("sub-%d", ids)
		}))
	unsub := f.engine.AddEventListener(f.events.handle)
	t.Cleanup(unsub)
	return f
}

func (f *fixture) start(t *testing.T, n int) {
	t.Helper()
	if err := f.engine.StartReview(context.Background(), review.ModeDueCards, n, Filters{}); err != nil {
		t.Fatal(err)
	}
}

func TestStartReview(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	is.Equal(f.engine.State(), StateUninitialized)

	f.start(t, 10)

	s := f.engine.Session()
	is.True(s != nil)
	is.Equal(s.TotalCards, 10)
	is.Equal(s.CurrentCardIndex, 0)
	is.True(!s.IsCompleted)
	is.Equal(f.engine.CurrentCardIndex(), 0)
	is.Equal(f.engine.State(), StateActive)
	is.True(!f.engine.ShowAnswer())
	is.Equal(f.events.types(), []events.Type{events.Start})
	is.Equal(f.events.last().Data["totalCards"], 10)

	saved := f.store.Load()
	is.True(saved != nil)
	is.Equal(saved.ID, s.ID)
}

func TestStartReviewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mode    review.Mode
		limit   int
		filters Filters
		problem string
	}{
		{name: "limit too low", mode: review.ModeDueCards, limit: 0,
			problem: "limit must be between 1 and 100"},
		{name: "limit too high", mode: review.ModeDueCards, limit: 101,
			problem: "limit must be between 1 and 100"},
		{name: "unknown mode", mode: "SOMETIMES", limit: 10,
			problem: "invalid review mode"},
		{name: "both word lists", mode: review.ModeAllCards, limit: 10,
			filters: Filters{IncludeWordListIDs: []string{"a"}, ExcludeWordListIDs: []string{"b"}},
			problem: "cannot specify both include and exclude word lists"},
		{name: "both word types", mode: review.ModeAllCards, limit: 10,
			filters: Filters{IncludeWordTypes: []review.WordType{review.WordTypeNoun},
				ExcludeWordTypes: []review.WordType{review.WordTypeVerb}},
			problem: "cannot specify both include and exclude word types"},
		{name: "bad word type", mode: review.ModeAllCards, limit: 10,
			filters: Filters{IncludeWordTypes: []review.WordType{"GERUND"}},
			problem: "invalid word type"},
		{name: "inverted difficulty", mode: review.ModeAllCards, limit: 10,
			filters: Filters{DifficultyRange: &[2]float64{0.8, 0.2}},
			problem: "difficulty range must be non-negative and ordered"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			f := newFixture(t)
			err := f.engine.StartReview(context.Background(), tc.mode, tc.limit, tc.filters)
			is.True(errors.Is(err, ErrInvalidRequest))
			var verr *ValidationError
			is.True(errors.As(err, &verr))
			is.Equal(verr.Problems, []string{tc.problem})
			is.Equal(f.remote.starts, 0)
			is.Equal(len(f.events.types()), 0)
			is.True(f.engine.Session() == nil)
		})
	}
}

func TestStartReviewAcceptsFilters(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	err := f.engine.StartReview(context.Background(), review.ModeTargetedReview, 100, Filters{
		IncludeWordListIDs: []string{"list-1"},
		ExcludeWordTypes:   []review.WordType{review.WordTypePhrase},
		DifficultyRange:    &[2]float64{0, 0.5},
	})
	is.NoErr(err)
	is.Equal(f.remote.starts, 1)
}

func TestStartReviewFailure(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.remote.startErr = connect.NewError(connect.CodeUnavailable, errors.New("down"))

	err := f.engine.StartReview(context.Background(), review.ModeDueCards, 5, Filters{})
	is.True(err != nil)
	is.Equal(connect.CodeOf(err), connect.CodeUnavailable)
	is.Equal(f.remote.starts, 3)
	is.Equal(f.events.types(), []events.Type{events.Error})
	is.Equal(f.events.last().Data["action"], "start")
	is.True(f.engine.Session() == nil)
}

func TestToggleAnswerIsInvolutive(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)

	before := f.engine.ShowAnswer()
	is.Equal(f.engine.ToggleAnswer(), !before)
	is.Equal(f.engine.ToggleAnswer(), before)
	is.Equal(f.engine.ShowAnswer(), before)
}

func TestToggleAnswerWithoutSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	is.True(f.engine.ToggleAnswer())
	is.True(!f.engine.ToggleAnswer())

	// Starting a session always shows a fresh card with the answer hidden.
	f.engine.ToggleAnswer()
	f.start(t, 2)
	is.True(!f.engine.ShowAnswer())
}

func TestSubmitAdvances(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	f.engine.ToggleAnswer()
	f.clock.advance(2500 * time.Millisecond)

	err := f.engine.SubmitReview(context.Background(), review.OutcomeGood,
		WithUserAnswer("trans0"), WithConfidence(4))
	is.NoErr(err)

	is.Equal(len(f.remote.submitted), 1)
	req := f.remote.submitted[0]
	is.Equal(req.CardID, "card-0")
	is.Equal(req.ResponseTime, int64(2500))
	is.Equal(*req.UserAnswer, "trans0")
	is.Equal(*req.ConfidenceLevel, 4)
	is.Equal(req.SubmissionID, "sub-1")

	is.Equal(f.engine.CurrentCardIndex(), 1)
	is.Equal(f.engine.CurrentCard().Card.ID, "card-1")
	is.True(!f.engine.ShowAnswer())
	is.Equal(f.engine.CurrentResponseTime(), time.Duration(0))

	s := f.engine.Session()
	is.Equal(s.CompletedCards, 1)
	is.Equal(s.CorrectAnswers, 1)
	is.Equal(f.store.Load().CurrentCardIndex, 1)

	ev := f.events.last()
	is.Equal(ev.Type, events.Submit)
	is.Equal(ev.Data["cardIndex"], 0)
	is.Equal(ev.Data["outcome"], review.OutcomeGood)
	is.Equal(ev.Data["accuracy"], 100.0)
}

func TestCountsComeFromService(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 4)
	f.remote.mu.Lock()
	// The service decides what counts; the engine must not second-guess it.
	f.remote.live.CompletedCards = 2
	f.remote.live.CorrectAnswers = 0
	f.remote.mu.Unlock()

	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeEasy))
	s := f.engine.Session()
	is.Equal(s.CompletedCards, 3)
	is.Equal(s.CorrectAnswers, 1)
}

func TestSubmitLastCardCompletes(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 2)
	ctx := context.Background()

	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeGood))
	is.Equal(f.engine.CurrentCardIndex(), 1)
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeAgain))

	is.True(f.engine.Session() == nil)
	is.Equal(f.remote.completes, 1)
	is.Equal(f.engine.State(), StateCompleted)
	is.True(!f.engine.IsSessionActive())
	final := f.engine.LastCompleted()
	is.True(final.IsCompleted)
	is.Equal(final.CompletedCards, 2)
	is.Equal(final.CorrectAnswers, 1)
	is.True(f.store.Load() == nil)

	is.Equal(f.events.types(), []events.Type{events.Start, events.Submit, events.Submit, events.Complete})
	done := f.events.last()
	is.Equal(done.Data["totalCards"], 2)
	is.Equal(done.Data["correctAnswers"], 1)
	is.Equal(done.Data["accuracy"], 50.0)
	is.Equal(done.Data["duration"], int64(300))
}

func TestSubmitWithoutSessionIsNoop(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeGood))
	is.Equal(f.remote.submitCount(), 0)
	is.Equal(len(f.events.types()), 0)
}

func TestSubmitRejectsUnknownOutcome(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 2)
	err := f.engine.SubmitReview(context.Background(), "MAYBE")
	is.True(errors.Is(err, ErrInvalidRequest))
	is.Equal(f.remote.submitCount(), 0)
}

func TestSubmitWhileSubmittingIsNoop(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	gate := make(chan struct{})
	f.remote.mu.Lock()
	f.remote.submitGate = gate
	f.remote.mu.Unlock()

	done := make(chan error)
	go func() {
		done <- f.engine.SubmitReview(context.Background(), review.OutcomeGood)
	}()
	for f.remote.submitCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	is.True(f.engine.IsSubmitting())
	before := f.engine.Session()

	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeGood))
	is.Equal(f.remote.submitCount(), 1)
	is.Equal(f.engine.Session(), before)
	is.Equal(f.engine.CurrentCardIndex(), 0)

	close(gate)
	is.NoErr(<-done)
	is.True(!f.engine.IsSubmitting())
	is.Equal(f.engine.CurrentCardIndex(), 1)
}

func TestSubmitFailureLeavesCardInPlace(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	unavailable := connect.NewError(connect.CodeUnavailable, errors.New("flaky"))
	f.remote.submitErrs = []error{unavailable, unavailable, unavailable}
	f.engine.ToggleAnswer()

	err := f.engine.SubmitReview(context.Background(), review.OutcomeHard)
	is.True(err != nil)
	is.Equal(connect.CodeOf(err), connect.CodeUnavailable)
	is.Equal(f.remote.submitCount(), 3)
	is.True(!f.engine.IsSubmitting())
	is.Equal(f.engine.CurrentCardIndex(), 0)
	is.True(f.engine.ShowAnswer())
	is.Equal(f.engine.Session().CompletedCards, 0)
	is.Equal(f.events.last().Type, events.Error)
	is.Equal(f.events.last().Data["action"], "submit")

	// Trying again resends the same answer under the same id.
	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeHard))
	is.Equal(f.remote.submitCount(), 4)
	for _, req := range f.remote.submitted {
		is.Equal(req.SubmissionID, "sub-1")
	}
	is.Equal(f.engine.CurrentCardIndex(), 1)
}

func TestSubmitAuthErrorIsNotRetried(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	f.remote.submitErrs = []error{connect.NewError(connect.CodeUnauthenticated, errors.New("expired"))}

	err := f.engine.SubmitReview(context.Background(), review.OutcomeGood)
	is.True(resilience.IsAuthError(err))
	is.Equal(f.remote.submitCount(), 1)
}

func TestCompletionFailureCanBeRetried(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 1)
	f.remote.completeErr = connect.NewError(connect.CodeUnavailable, errors.New("down"))

	err := f.engine.SubmitReview(context.Background(), review.OutcomeGood)
	is.True(err != nil)
	is.True(f.engine.Session() != nil)
	is.Equal(f.remote.submitCount(), 1)

	f.remote.mu.Lock()
	f.remote.completeErr = nil
	f.remote.mu.Unlock()
	// The card is already recorded, so this only finishes the session.
	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeGood))
	is.Equal(f.remote.submitCount(), 1)
	is.True(f.engine.Session() == nil)
	is.True(f.engine.LastCompleted().IsCompleted)
}

func TestRestartSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 4)
	ctx := context.Background()
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeGood))
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeAgain))
	before := f.engine.Session()
	f.clock.advance(time.Hour)
	eventsBefore := len(f.events.types())

	f.engine.RestartSession()

	s := f.engine.Session()
	is.Equal(s.CompletedCards, 0)
	is.Equal(s.CorrectAnswers, 0)
	is.Equal(s.TotalCards, 4)
	is.Equal(s.CurrentCardIndex, 0)
	is.Equal(f.engine.CurrentCardIndex(), 0)
	is.Equal(s.StartTime, f.clock.Now())
	is.Equal(len(s.Cards), len(before.Cards))
	for i := range s.Cards {
		is.Equal(s.Cards[i].Card.ID, before.Cards[i].Card.ID)
		is.True(!s.Cards[i].Reviewed())
	}
	is.Equal(f.store.Load().CompletedCards, 0)
	is.Equal(len(f.events.types()), eventsBefore)
	is.Equal(f.remote.completes, 0)
}

func TestRestartAfterLastCardResubmitsEveryCard(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 2)
	ctx := context.Background()
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeGood))
	f.remote.mu.Lock()
	f.remote.completeErr = connect.NewError(connect.CodeUnavailable, errors.New("down"))
	f.remote.mu.Unlock()
	is.True(f.engine.SubmitReview(ctx, review.OutcomeGood) != nil)
	is.Equal(f.remote.submitCount(), 2)

	f.remote.mu.Lock()
	f.remote.completeErr = nil
	f.remote.mu.Unlock()
	f.engine.RestartSession()

	// The service still reports the last card as answered, but this run
	// hasn't answered it yet.
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeHard))
	is.Equal(f.engine.CurrentCardIndex(), 1)
	is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeEasy))
	is.Equal(f.remote.submitCount(), 4)
	is.Equal(f.remote.submitted[3].CardID, "card-1")
	is.True(f.engine.Session() == nil)
	is.True(f.engine.LastCompleted().IsCompleted)
}

func TestRestartWithoutSessionIsNoop(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.engine.RestartSession()
	is.True(f.engine.Session() == nil)
	is.True(f.store.Load() == nil)
}

func TestPauseResume(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	is.NoErr(f.engine.SubmitReview(context.Background(), review.OutcomeGood))
	before := f.engine.Session()

	f.clock.advance(10 * time.Second)
	f.engine.PauseSession()
	f.engine.PauseSession()
	is.True(f.engine.IsPaused())
	is.Equal(f.engine.State(), StatePaused)
	f.clock.advance(time.Minute)
	f.engine.ResumeSession()
	f.engine.ResumeSession()
	is.Equal(f.engine.State(), StateActive)
	f.clock.advance(time.Second)

	after := f.engine.Session()
	is.Equal(after.CompletedCards, before.CompletedCards)
	is.Equal(after.CorrectAnswers, before.CorrectAnswers)
	is.Equal(f.engine.CurrentResponseTime(), time.Second)
	is.Equal(f.events.types(), []events.Type{events.Start, events.Submit, events.Pause, events.Resume})
}

func TestPauseWithoutSessionIsSilent(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.engine.PauseSession()
	f.engine.ResumeSession()
	is.True(!f.engine.IsPaused())
	is.Equal(len(f.events.types()), 0)
}

func TestEndSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 3)
	f.engine.PauseSession()

	f.engine.EndSession()

	is.True(f.engine.Session() == nil)
	is.Equal(f.engine.State(), StateUninitialized)
	is.True(!f.engine.IsPaused())
	is.True(f.store.Load() == nil)
	is.Equal(f.remote.completes, 0)
	ev := f.events.last()
	is.Equal(ev.Type, events.Complete)
	is.Equal(ev.Data["manualEnd"], true)

	n := len(f.events.types())
	f.engine.EndSession()
	is.Equal(len(f.events.types()), n)
}

func TestSkipCard(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.start(t, 2)
	ctx := context.Background()

	is.NoErr(f.engine.SkipCard(ctx))
	is.Equal(f.engine.CurrentCardIndex(), 1)
	is.Equal(f.remote.submitCount(), 0)

	is.NoErr(f.engine.SkipCard(ctx))
	is.True(f.engine.Session() == nil)
	is.Equal(f.remote.completes, 1)
	is.Equal(f.engine.State(), StateCompleted)
}

func TestInitializePrefersRemote(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	local := makeSession("local", 3)
	f.store.Save(local)
	remote := makeSession("remote", 5)
	remote.CurrentCardIndex = 2
	f.remote.active = remote

	is.NoErr(f.engine.Initialize(context.Background()))
	is.Equal(f.engine.Session().ID, "remote")
	is.Equal(f.engine.CurrentCardIndex(), 2)
	is.Equal(f.store.Load().ID, "remote")

	// Initialization happens once.
	f.remote.active = makeSession("other", 2)
	is.NoErr(f.engine.Initialize(context.Background()))
	is.Equal(f.engine.Session().ID, "remote")
	is.Equal(f.remote.lookups, 1)
}

func TestInitializeHydratesFromStore(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	local := makeSession("local", 3)
	local.CurrentCardIndex = 1
	f.store.Save(local)

	is.NoErr(f.engine.Initialize(context.Background()))
	s := f.engine.Session()
	is.Equal(s.ID, "local")
	is.Equal(s.StartTime, local.StartTime)
	is.Equal(f.engine.CurrentCardIndex(), 1)
	is.Equal(f.engine.State(), StateActive)
}

func TestInitializeSkipsForeignOrFinishedRecords(t *testing.T) {
	is := is.New(t)

	f := newFixture(t)
	foreign := makeSession("theirs", 3)
	foreign.UserID = "user-2"
	f.store.Save(foreign)
	is.NoErr(f.engine.Initialize(context.Background()))
	is.True(f.engine.Session() == nil)

	f = newFixture(t)
	done := makeSession("done", 3)
	done.IsCompleted = true
	f.store.Save(done)
	is.NoErr(f.engine.Initialize(context.Background()))
	is.True(f.engine.Session() == nil)
}

func TestInitializeSurfacesAuthErrors(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.engine.remote = &authFailingRemote{fakeRemote: f.remote}

	err := f.engine.Initialize(context.Background())
	is.True(resilience.IsAuthError(err))
	is.Equal(f.events.last().Data["action"], "initialize")
}

type authFailingRemote struct {
	*fakeRemote
}

func (a *authFailingRemote) ActiveSession(ctx context.Context) (*review.Session, error) {
	return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("no token"))
}

func TestLateInitializeDoesNotOverwriteStartedSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	gate := make(chan struct{})
	f.remote.activeGate = gate
	f.remote.active = makeSession("stale", 4)

	done := make(chan error)
	go func() { done <- f.engine.Initialize(context.Background()) }()
	for {
		f.remote.mu.Lock()
		n := f.remote.lookups
		f.remote.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	f.start(t, 3)
	close(gate)
	is.NoErr(<-done)

	s := f.engine.Session()
	is.Equal(s.ID, "s1")
	is.Equal(s.TotalCards, 3)
}

func TestReadPassThroughs(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st, err := f.engine.Statistics(ctx, from, from.AddDate(0, 1, 0))
	is.NoErr(err)
	is.Equal(st.TotalReviews, 12)

	p, err := f.engine.Preferences(ctx)
	is.NoErr(err)
	is.Equal(p.DailyReviewLimit, 50)

	modes, err := f.engine.AvailableModes(ctx)
	is.NoErr(err)
	is.Equal(len(modes), 1)
}

func TestProgressTracksPointer(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	_, ok := f.engine.Progress()
	is.True(!ok)

	f.start(t, 10)
	ctx := context.Background()
	for range 5 {
		is.NoErr(f.engine.SubmitReview(ctx, review.OutcomeGood))
	}
	snap, ok := f.engine.Progress()
	is.True(ok)
	is.Equal(snap.Current, 6)
	is.Equal(snap.Percentage, 60.0)
	is.Equal(snap.Remaining, 5)
}

func TestListenerSeesCopies(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.engine.AddEventListener(func(e events.Event) {
		if e.Data != nil {
			e.Data["totalCards"] = -1
		}
	})
	f.start(t, 3)
	is.Equal(f.engine.Session().TotalCards, 3)
}
