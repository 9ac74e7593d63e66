package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/events"
	"github.com/domino14/review_engine/internal/progress"
	"github.com/domino14/review_engine/internal/resilience"
	"github.com/domino14/review_engine/internal/review"
)

// ErrNoSession is returned when the service answers without a session.
var ErrNoSession = errors.New("review service returned no session")

// Filters narrows down which cards a new session draws from. The zero value
// means no filtering.
type Filters struct {
	IncludeWordListIDs []string
	ExcludeWordListIDs []string
	IncludeWordTypes   []review.WordType
	ExcludeWordTypes   []review.WordType
	DifficultyRange    *[2]float64
	Shuffle            *bool
	PrioritizeNewCards *bool
}

func (f Filters) request(mode review.Mode, limit int) *review.StartRequest {
	return &review.StartRequest{
		Mode:               mode,
		Limit:              limit,
		IncludeWordListIDs: f.IncludeWordListIDs,
		ExcludeWordListIDs: f.ExcludeWordListIDs,
		IncludeWordTypes:   f.IncludeWordTypes,
		ExcludeWordTypes:   f.ExcludeWordTypes,
		DifficultyRange:    f.DifficultyRange,
		Shuffle:            f.Shuffle,
		PrioritizeNewCards: f.PrioritizeNewCards,
	}
}

// SubmitOption attaches optional details to a submitted answer.
type SubmitOption func(*review.SubmitRequest)

func WithUserAnswer(answer string) SubmitOption {
	return func(r *review.SubmitRequest) { r.UserAnswer = &answer }
}

func WithConfidence(level int) SubmitOption {
	return func(r *review.SubmitRequest) { r.ConfidenceLevel = &level }
}

func WithHintUsed() SubmitOption {
	return func(r *review.SubmitRequest) { r.HintUsed = review.Ptr(true) }
}

func MarkedAsDifficult() SubmitOption {
	return func(r *review.SubmitRequest) { r.MarkedAsDifficult = review.Ptr(true) }
}

func WithNotes(notes string) SubmitOption {
	return func(r *review.SubmitRequest) { r.Notes = &notes }
}

// Initialize looks for a session to pick up where the learner left off:
// first the service's active session, then the locally saved one. Whichever
// yields a session first wins, and neither is consulted again. A session
// started while Initialize is still waiting on the service is never
// overwritten.
//
// Only an authentication failure is returned; other lookup failures fall
// through to the local record.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized || e.session != nil {
		e.mu.Unlock()
		return nil
	}
	epoch := e.epoch
	e.mu.Unlock()

	remote, err := resilience.WithRetry(ctx, e.retrier, e.remote.ActiveSession)
	if err != nil {
		log.Err(err).Msg("active-session-lookup-failed")
		e.emitError("", "initialize", err)
	} else if remote != nil && !remote.IsCompleted {
		if e.adopt(remote, epoch, "remote") {
			return nil
		}
	}

	if local := e.store.Load(); local != nil {
		verr := local.Validate()
		switch {
		case local.IsCompleted:
			log.Debug().Str("session", local.ID).Msg("saved-session-already-completed")
		case e.userID != "" && local.UserID != "" && local.UserID != e.userID:
			log.Info().Str("session", local.ID).Str("owner", local.UserID).
				Msg("saved-session-belongs-to-other-user")
		case verr != nil:
			log.Warn().Err(verr).Str("session", local.ID).Msg("saved-session-invalid")
		default:
			if e.adopt(local, epoch, "local") {
				return nil
			}
		}
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	if resilience.IsAuthError(err) {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// adopt installs s as the live session unless something got there first.
// It returns true once initialization is settled either way.
func (e *Engine) adopt(s *review.Session, epoch int, source string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized || e.session != nil || e.epoch != epoch {
		log.Info().Str("session", s.ID).Str("source", source).Msg("late-session-discarded")
		e.initialized = true
		return true
	}
	e.session = s.Clone()
	e.epoch++
	e.initialized = true
	e.finished = false
	e.paused = false
	idx := s.CurrentCardIndex
	if idx < 0 || idx >= len(s.Cards) {
		idx = 0
	}
	// Picked up after the last answer was recorded but before completion.
	e.awaitingCompletion = len(s.Cards) > 0 && idx == len(s.Cards)-1 && s.Cards[idx].Reviewed()
	e.presentLocked(idx)
	e.persistLocked()
	log.Info().Str("session", s.ID).Str("source", source).Int("card", idx).Msg("session-resumed")
	return true
}

// StartReview asks the service for a new session. A bad configuration is
// reported as a *ValidationError without contacting the service.
func (e *Engine) StartReview(ctx context.Context, mode review.Mode, limit int, filters Filters) error {
	req := filters.request(mode, limit)
	if err := e.validateStart(req); err != nil {
		log.Debug().Err(err).Msg("start-request-rejected")
		return err
	}
	s, err := resilience.WithRetry(ctx, e.retrier, func(ctx context.Context) (*review.Session, error) {
		return e.remote.StartSession(ctx, req)
	})
	if err == nil && s == nil {
		err = ErrNoSession
	}
	if err != nil {
		e.emitError("", "start", err)
		return fmt.Errorf("start review: %w", err)
	}

	e.mu.Lock()
	e.session = s.Clone()
	e.epoch++
	e.initialized = true
	e.finished = false
	e.paused = false
	e.submitting = false
	e.completing = false
	e.awaitingCompletion = false
	e.presentLocked(0)
	e.persistLocked()
	id, total := e.session.ID, e.session.TotalCards
	e.mu.Unlock()

	log.Info().Str("session", id).Str("mode", string(mode)).Int("cards", total).Msg("session-started")
	e.emit(events.Start, id, map[string]any{
		"mode":       mode,
		"totalCards": total,
	})
	return nil
}

// SubmitReview reports the learner's outcome for the card on screen. It
// does nothing if there is no card to answer or an answer is already on its
// way to the service.
//
// A failed submission leaves the card on screen; calling SubmitReview again
// resends it with the same submission id, so the service can tell whether
// it already recorded it.
func (e *Engine) SubmitReview(ctx context.Context, outcome review.Outcome, opts ...SubmitOption) error {
	if !outcome.Valid() {
		return &ValidationError{Problems: []string{"invalid review outcome"}}
	}

	e.mu.Lock()
	s := e.session
	if s == nil || s.IsCompleted || e.submitting || e.completing || e.current >= len(s.Cards) {
		e.mu.Unlock()
		return nil
	}
	idx := e.current
	card := s.Cards[idx]
	if e.awaitingCompletion {
		// Answered already; only the completion is outstanding.
		id, epoch := e.claimCompletionLocked()
		e.mu.Unlock()
		return e.finish(ctx, id, epoch)
	}
	req := &review.SubmitRequest{
		SessionID:    s.ID,
		CardID:       card.Card.ID,
		Outcome:      outcome,
		ResponseTime: e.nower.Now().Sub(e.cardShownAt).Milliseconds(),
		SubmissionID: e.submissionID,
	}
	for _, o := range opts {
		o(req)
	}
	s.CurrentCardIndex = idx
	e.submitting = true
	epoch := e.epoch
	e.mu.Unlock()

	resp, err := resilience.WithRetry(ctx, e.retrier, func(ctx context.Context) (*review.Session, error) {
		return e.remote.SubmitReview(ctx, req)
	})
	if err == nil && resp == nil {
		err = ErrNoSession
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		log.Info().Str("session", req.SessionID).Msg("stale-submission-result-dropped")
		return nil
	}
	e.submitting = false
	if err != nil {
		e.mu.Unlock()
		log.Err(err).Str("session", req.SessionID).Str("card", req.CardID).Msg("submit-failed")
		e.emitError(req.SessionID, "submit", err)
		return fmt.Errorf("submit review: %w", err)
	}

	e.session = resp.Clone()
	accuracy := progress.Accuracy(e.session.CorrectAnswers, e.session.CompletedCards)
	last := idx+1 >= len(e.session.Cards)
	var completeID string
	var completeEpoch int
	if last {
		e.session.CurrentCardIndex = idx
		e.awaitingCompletion = true
		e.persistLocked()
		completeID, completeEpoch = e.claimCompletionLocked()
	} else {
		e.presentLocked(idx + 1)
		e.persistLocked()
	}
	e.mu.Unlock()

	log.Debug().Str("session", req.SessionID).Int("card", idx).Str("outcome", string(outcome)).
		Int64("ms", req.ResponseTime).Msg("review-submitted")
	e.emit(events.Submit, req.SessionID, map[string]any{
		"cardIndex": idx,
		"outcome":   outcome,
		"accuracy":  accuracy,
	})
	if last {
		return e.finish(ctx, completeID, completeEpoch)
	}
	return nil
}

// SkipCard moves on without answering. Skipping the last card completes the
// session.
func (e *Engine) SkipCard(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.IsCompleted || e.submitting || e.completing {
		e.mu.Unlock()
		return nil
	}
	if e.current+1 < len(s.Cards) {
		e.presentLocked(e.current + 1)
		e.persistLocked()
		e.mu.Unlock()
		return nil
	}
	id, epoch := e.claimCompletionLocked()
	e.mu.Unlock()
	return e.finish(ctx, id, epoch)
}

// CompleteSession tells the service the session is over. On success the
// final snapshot is available from LastCompleted.
func (e *Engine) CompleteSession(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil || e.completing {
		e.mu.Unlock()
		return nil
	}
	id, epoch := e.claimCompletionLocked()
	e.mu.Unlock()
	return e.finish(ctx, id, epoch)
}

func (e *Engine) claimCompletionLocked() (string, int) {
	e.completing = true
	return e.session.ID, e.epoch
}

func (e *Engine) finish(ctx context.Context, sessionID string, epoch int) error {
	final, err := resilience.WithRetry(ctx, e.retrier, func(ctx context.Context) (*review.Session, error) {
		return e.remote.CompleteSession(ctx, sessionID)
	})

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.completing = false
		e.mu.Unlock()
		log.Err(err).Str("session", sessionID).Msg("complete-failed")
		e.emitError(sessionID, "complete", err)
		return fmt.Errorf("complete session: %w", err)
	}
	if final == nil {
		final = e.session
	}
	final = final.Clone()
	final.IsCompleted = true
	if final.EndTime == nil {
		end := e.nower.Now()
		final.EndTime = &end
	}
	e.lastCompleted = final
	e.finished = true
	e.teardownLocked()
	e.mu.Unlock()

	accuracy := progress.Accuracy(final.CorrectAnswers, final.CompletedCards)
	duration := progress.Duration(final.StartTime, final.EndTime)
	log.Info().Str("session", final.ID).Int("completed", final.CompletedCards).
		Int("correct", final.CorrectAnswers).Int64("seconds", duration).Msg("session-completed")
	e.emit(events.Complete, final.ID, map[string]any{
		"totalCards":     final.TotalCards,
		"correctAnswers": final.CorrectAnswers,
		"accuracy":       accuracy,
		"duration":       duration,
	})
	return nil
}

func (e *Engine) PauseSession() {
	e.mu.Lock()
	if e.session == nil || e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	id := e.session.ID
	e.mu.Unlock()
	e.emit(events.Pause, id, nil)
}

// ResumeSession unpauses. The current card's clock starts over so time
// spent paused isn't counted as response time.
func (e *Engine) ResumeSession() {
	e.mu.Lock()
	if e.session == nil || !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.cardShownAt = e.nower.Now()
	id := e.session.ID
	e.mu.Unlock()
	e.emit(events.Resume, id, nil)
}

// RestartSession runs the same cards again from the top. It is local only;
// the service is not told.
func (e *Engine) RestartSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil {
		return
	}
	s.CompletedCards = 0
	s.CorrectAnswers = 0
	s.AverageResponseTime = 0
	s.IsCompleted = false
	s.StartTime = e.nower.Now()
	s.EndTime = nil
	clearDerived(s)
	for i := range s.Cards {
		s.Cards[i].ResetReview()
	}
	// Anything still in flight belongs to the old run.
	e.epoch++
	e.submitting = false
	e.completing = false
	e.awaitingCompletion = false
	e.paused = false
	e.presentLocked(0)
	e.persistLocked()
	log.Info().Str("session", s.ID).Msg("session-restarted")
}

// EndSession abandons the session without telling the service.
func (e *Engine) EndSession() {
	e.mu.Lock()
	var id string
	had := e.session != nil
	if had {
		id = e.session.ID
	}
	e.teardownLocked()
	e.finished = false
	e.mu.Unlock()
	if had {
		log.Info().Str("session", id).Msg("session-ended")
		e.emit(events.Complete, id, map[string]any{"manualEnd": true})
	}
}

// ToggleAnswer flips whether the answer is showing and returns the new
// value. It works with or without a session; presenting a card hides the
// answer again.
func (e *Engine) ToggleAnswer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showAnswer = !e.showAnswer
	return e.showAnswer
}

func (e *Engine) Statistics(ctx context.Context, from, to time.Time) (*review.Statistics, error) {
	st, err := resilience.WithRetry(ctx, e.retrier, func(ctx context.Context) (*review.Statistics, error) {
		return e.remote.Statistics(ctx, from, to)
	})
	if err != nil {
		e.emitError("", "statistics", err)
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return st, nil
}

func (e *Engine) Preferences(ctx context.Context) (*review.Preferences, error) {
	p, err := resilience.WithRetry(ctx, e.retrier, e.remote.Preferences)
	if err != nil {
		e.emitError("", "preferences", err)
		return nil, fmt.Errorf("preferences: %w", err)
	}
	return p, nil
}

func (e *Engine) AvailableModes(ctx context.Context) ([]review.ModeInfo, error) {
	modes, err := resilience.WithRetry(ctx, e.retrier, e.remote.AvailableModes)
	if err != nil {
		e.emitError("", "modes", err)
		return nil, fmt.Errorf("available modes: %w", err)
	}
	return modes, nil
}

func clearDerived(s *review.Session) {
	s.SessionAccuracy = nil
	s.SessionDuration = nil
	s.CardsPerMinute = nil
	s.TotalSessionScore = nil
	s.EfficiencyScore = nil
	s.NewCardsLearned = nil
	s.DifficultCardsMastered = nil
	s.LearningVelocity = nil
	s.RemainingCards = nil
	s.ProgressPercentage = nil
}
