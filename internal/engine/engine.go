// Package engine drives a spaced-repetition review session from start to
// completion against the remote review service.
//
// The service is the single source of truth for everything it computes:
// after each successful call the engine swaps in the service's copy of the
// session wholesale and never adjusts counters itself. The engine only owns
// what the service can't know about: which card is on screen, whether its
// answer is showing, whether the learner has paused, and how long the card
// has been up.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/domino14/review_engine/internal/events"
	"github.com/domino14/review_engine/internal/progress"
	"github.com/domino14/review_engine/internal/resilience"
	"github.com/domino14/review_engine/internal/review"
	"github.com/domino14/review_engine/internal/sessionstore"
)

// Remote is the part of the review service the engine talks to.
type Remote interface {
	ActiveSession(ctx context.Context) (*review.Session, error)
	StartSession(ctx context.Context, req *review.StartRequest) (*review.Session, error)
	SubmitReview(ctx context.Context, req *review.SubmitRequest) (*review.Session, error)
	CompleteSession(ctx context.Context, sessionID string) (*review.Session, error)
	Statistics(ctx context.Context, from, to time.Time) (*review.Statistics, error)
	Preferences(ctx context.Context) (*review.Preferences, error)
	AvailableModes(ctx context.Context) ([]review.ModeInfo, error)
}

type Nower interface {
	Now() time.Time
}

type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now()
}

type State int

const (
	StateUninitialized State = iota
	StateActive
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	}
	return "uninitialized"
}

type Engine struct {
	remote   Remote
	store    *sessionstore.Adapter
	bus      events.Publisher
	retrier  *resilience.Retrier
	nower    Nower
	userID   string
	newID    func() string
	validate *validator.Validate

	mu            sync.Mutex
	session       *review.Session
	current       int
	showAnswer    bool
	paused        bool
	submitting    bool
	completing    bool
	// awaitingCompletion is set once the last card has been recorded by the
	// service and only the completion call is outstanding.
	awaitingCompletion bool
	initialized   bool
	finished      bool
	cardShownAt   time.Time
	submissionID  string
	lastCompleted *review.Session
	// epoch changes whenever the live session is replaced or torn down, so
	// a call that settles afterwards can tell its result is stale.
	epoch int
}

type Option func(*Engine)

func WithRetrier(r *resilience.Retrier) Option {
	return func(e *Engine) { e.retrier = r }
}

func WithNower(n Nower) Option {
	return func(e *Engine) { e.nower = n }
}

func WithBus(b events.Publisher) Option {
	return func(e *Engine) { e.bus = b }
}

// WithUserID sets the user the engine works for. Saved sessions that
// belong to somebody else are ignored on startup.
func WithUserID(id string) Option {
	return func(e *Engine) { e.userID = id }
}

// WithIDGenerator replaces the submission id generator.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// New builds an engine. A nil store keeps the session in memory only.
func New(remote Remote, store *sessionstore.Adapter, opts ...Option) *Engine {
	if store == nil {
		store = sessionstore.NewAdapter(sessionstore.NewMemoryStore())
	}
	e := &Engine{
		remote:   remote,
		store:    store,
		bus:      events.NewBus(),
		retrier:  resilience.New(),
		nower:    RealNower{},
		newID:    uuid.NewString,
		validate: newValidator(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddEventListener subscribes h to lifecycle events. The caller must call
// the returned function once it is no longer interested.
func (e *Engine) AddEventListener(h events.Handler) func() {
	return e.bus.Subscribe(h)
}

func (e *Engine) emit(t events.Type, sessionID string, data map[string]any) {
	e.bus.Publish(events.Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: e.nower.Now(),
		Data:      data,
	})
}

func (e *Engine) emitError(sessionID, action string, err error) {
	e.emit(events.Error, sessionID, map[string]any{
		"error":  err.Error(),
		"action": action,
	})
}

// presentLocked puts card i on screen. Callers hold e.mu.
func (e *Engine) presentLocked(i int) {
	e.current = i
	if e.session != nil {
		e.session.CurrentCardIndex = i
	}
	e.showAnswer = false
	e.cardShownAt = e.nower.Now()
	e.submissionID = e.newID()
}

// persistLocked writes a copy of the live session. Callers hold e.mu.
func (e *Engine) persistLocked() {
	if e.session != nil {
		e.store.Save(e.session)
	}
}

// teardownLocked drops the live session and everything tied to it.
func (e *Engine) teardownLocked() {
	e.session = nil
	e.current = 0
	e.showAnswer = false
	e.paused = false
	e.submitting = false
	e.completing = false
	e.awaitingCompletion = false
	e.submissionID = ""
	e.epoch++
	e.store.Clear()
}

// Session returns a copy of the live session, or nil.
func (e *Engine) Session() *review.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// LastCompleted returns the final snapshot of the most recently completed
// session, marked completed.
func (e *Engine) LastCompleted() *review.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCompleted.Clone()
}

// CurrentCard returns the card on screen, or nil.
func (e *Engine) CurrentCard() *review.SessionCard {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.current >= len(e.session.Cards) {
		return nil
	}
	c := e.session.Cards[e.current]
	return &c
}

func (e *Engine) CurrentCardIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) ShowAnswer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.showAnswer
}

func (e *Engine) IsSubmitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) IsSessionActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && !e.session.IsCompleted
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.session != nil && e.paused:
		return StatePaused
	case e.session != nil:
		return StateActive
	case e.finished:
		return StateCompleted
	}
	return StateUninitialized
}

// Progress returns the derived metrics for the live session. ok is false
// when there is no session.
func (e *Engine) Progress() (snap progress.Snapshot, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return progress.Snapshot{}, false
	}
	return progress.Calculate(e.session, e.current), true
}

// CurrentResponseTime is how long the current card has been up.
func (e *Engine) CurrentResponseTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.cardShownAt.IsZero() {
		return 0
	}
	return e.nower.Now().Sub(e.cardShownAt)
}
