// Package reviewservice is an in-memory implementation of the review
// service contract. It schedules cards with FSRS and keeps everything per
// user in process memory; it's meant for local use and for exercising the
// client end to end.
package reviewservice

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/open-spaced-repetition/go-fsrs/v3"

	"github.com/domino14/review_engine/internal/review"
)

const (
	MaxSessionLimit   = 100
	DefaultCardsLimit = 20

	// SessionTimeout is how long an untouched session stays active.
	SessionTimeout = 24 * time.Hour
	// DifficultLapses is how many lapses make a card difficult.
	DifficultLapses = 3
)

type nower interface {
	Now() time.Time
}

type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now()
}

type cardState struct {
	card  review.Card
	sched fsrs.Card
}

type reviewEvent struct {
	at           time.Time
	correct      bool
	responseTime int64
	wasNew       bool
}

type userData struct {
	cards       []*cardState
	byID        map[string]*cardState
	sessions    map[string]*review.Session
	active      string
	submissions map[string]*review.Session
	prefs       review.Preferences
	history     []reviewEvent
}

type Service struct {
	mu       sync.Mutex
	users    map[string]*userData
	seed     []review.Word
	fsrs     *fsrs.FSRS
	nower    nower
	newID    func() string
	shuffle  func(n int, swap func(i, j int))
	validate *validator.Validate
}

type Option func(*Service)

func WithNower(n nower) Option {
	return func(s *Service) { s.nower = n }
}

// WithSeedWords gives every new user a deck built from words.
func WithSeedWords(words []review.Word) Option {
	return func(s *Service) { s.seed = words }
}

// WithShuffle replaces the shuffler used for random selection.
func WithShuffle(f func(n int, swap func(i, j int))) Option {
	return func(s *Service) { s.shuffle = f }
}

func New(opts ...Option) *Service {
	s := &Service{
		users:    map[string]*userData{},
		fsrs:     fsrs.NewFSRS(fsrs.DefaultParam()),
		nower:    RealNower{},
		newID:    uuid.NewString,
		shuffle:  rand.Shuffle,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func unauthenticated(msg string) *connect.Error {
	return connect.NewError(connect.CodeUnauthenticated, errors.New(msg))
}

func invalidArgError(msg string) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}

func notFound(msg string) *connect.Error {
	return connect.NewError(connect.CodeNotFound, errors.New(msg))
}

func failedPrecondition(msg string) *connect.Error {
	return connect.NewError(connect.CodeFailedPrecondition, errors.New(msg))
}

// userLocked returns the data for userID, creating and seeding it on first
// use. Callers hold s.mu.
func (s *Service) userLocked(userID string) *userData {
	u, ok := s.users[userID]
	if ok {
		return u
	}
	u = &userData{
		byID:        map[string]*cardState{},
		sessions:    map[string]*review.Session{},
		submissions: map[string]*review.Session{},
		prefs:       review.DefaultPreferences(userID),
	}
	s.users[userID] = u
	s.addWordsLocked(userID, u, s.seed)
	return u
}

// AddWords puts new cards for words into a user's deck.
func (s *Service) AddWords(userID string, words []review.Word) []review.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userID)
	return s.addWordsLocked(userID, u, words)
}

func (s *Service) addWordsLocked(userID string, u *userData, words []review.Word) []review.Card {
	now := s.nower.Now()
	added := make([]review.Card, 0, len(words))
	for _, w := range words {
		if w.ID == "" {
			w.ID = s.newID()
		}
		sched := fsrs.NewCard()
		sched.Due = now
		cs := &cardState{
			card: review.Card{
				ID:              s.newID(),
				UserID:          userID,
				Word:            w,
				EaseFactor:      easeFactor(sched),
				DueDate:         now,
				DifficultyLevel: float64(w.DifficultyLevel) / 10,
				IsNew:           true,
			},
			sched: sched,
		}
		u.cards = append(u.cards, cs)
		u.byID[cs.card.ID] = cs
		added = append(added, cs.card)
	}
	return added
}

// Handler returns an http.Handler serving every procedure of the review
// service. Options are applied to each procedure; the JSON codec is always
// added.
func (s *Service) Handler(opts ...connect.HandlerOption) http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(review.JSONCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(review.ProcedureGetActiveSession, connect.NewUnaryHandler(
		review.ProcedureGetActiveSession, s.GetActiveSession, opts...))
	mux.Handle(review.ProcedureStartSession, connect.NewUnaryHandler(
		review.ProcedureStartSession, s.StartSession, opts...))
	mux.Handle(review.ProcedureSubmitReview, connect.NewUnaryHandler(
		review.ProcedureSubmitReview, s.SubmitReview, opts...))
	mux.Handle(review.ProcedureCompleteSession, connect.NewUnaryHandler(
		review.ProcedureCompleteSession, s.CompleteSession, opts...))
	mux.Handle(review.ProcedureGetDueCards, connect.NewUnaryHandler(
		review.ProcedureGetDueCards, s.GetDueCards, opts...))
	mux.Handle(review.ProcedureGetNewCards, connect.NewUnaryHandler(
		review.ProcedureGetNewCards, s.GetNewCards, opts...))
	mux.Handle(review.ProcedureGetDifficultCards, connect.NewUnaryHandler(
		review.ProcedureGetDifficultCards, s.GetDifficultCards, opts...))
	mux.Handle(review.ProcedureGetRandomCards, connect.NewUnaryHandler(
		review.ProcedureGetRandomCards, s.GetRandomCards, opts...))
	mux.Handle(review.ProcedureGetStatistics, connect.NewUnaryHandler(
		review.ProcedureGetStatistics, s.GetStatistics, opts...))
	mux.Handle(review.ProcedureGetPreferences, connect.NewUnaryHandler(
		review.ProcedureGetPreferences, s.GetPreferences, opts...))
	mux.Handle(review.ProcedureUpdatePreferences, connect.NewUnaryHandler(
		review.ProcedureUpdatePreferences, s.UpdatePreferences, opts...))
	mux.Handle(review.ProcedureGetAvailableModes, connect.NewUnaryHandler(
		review.ProcedureGetAvailableModes, s.GetAvailableModes, opts...))
	mux.Handle(review.ProcedureSuspendCard, connect.NewUnaryHandler(
		review.ProcedureSuspendCard, s.SuspendCard, opts...))
	mux.Handle(review.ProcedureUnsuspendCard, connect.NewUnaryHandler(
		review.ProcedureUnsuspendCard, s.UnsuspendCard, opts...))
	mux.Handle(review.ProcedureResetCard, connect.NewUnaryHandler(
		review.ProcedureResetCard, s.ResetCard, opts...))
	mux.Handle(review.ProcedureDeleteCard, connect.NewUnaryHandler(
		review.ProcedureDeleteCard, s.DeleteCard, opts...))
	return mux
}
