package reviewservice

import (
	"context"
	"math"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/open-spaced-repetition/go-fsrs/v3"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/auth"
	"github.com/domino14/review_engine/internal/progress"
	"github.com/domino14/review_engine/internal/review"
)

// activeLocked returns the user's session in progress, expiring it first if
// it has been left alone for too long.
func (s *Service) activeLocked(u *userData, now time.Time) *review.Session {
	if u.active == "" {
		return nil
	}
	sess := u.sessions[u.active]
	if sess == nil || sess.IsCompleted {
		u.active = ""
		return nil
	}
	if now.Sub(sess.StartTime) > SessionTimeout {
		log.Info().Str("session", sess.ID).Msg("session-timed-out")
		s.finishLocked(u, sess, now)
		return nil
	}
	return sess
}

func (s *Service) GetActiveSession(ctx context.Context, req *connect.Request[review.ActiveSessionRequest]) (
	*connect.Response[review.ActiveSessionResponse], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	sess := s.activeLocked(u, s.nower.Now())
	return connect.NewResponse(&review.ActiveSessionResponse{Session: sess.Clone()}), nil
}

func (s *Service) StartSession(ctx context.Context, req *connect.Request[review.StartRequest]) (
	*connect.Response[review.Session], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	msg := req.Msg
	if !msg.Mode.Valid() {
		return nil, invalidArgError("invalid review mode")
	}
	if msg.Limit < 1 || msg.Limit > MaxSessionLimit {
		return nil, invalidArgError("limit must be between 1 and 100")
	}
	if len(msg.IncludeWordListIDs) > 0 && len(msg.ExcludeWordListIDs) > 0 {
		return nil, invalidArgError("cannot specify both include and exclude word lists")
	}
	if len(msg.IncludeWordTypes) > 0 && len(msg.ExcludeWordTypes) > 0 {
		return nil, invalidArgError("cannot specify both include and exclude word types")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nower.Now()
	u := s.userLocked(user.UserID)
	if prev := s.activeLocked(u, now); prev != nil {
		// The client may have abandoned it without telling us.
		log.Info().Str("session", prev.ID).Msg("abandoned-session-closed")
		s.finishLocked(u, prev, now)
	}

	cards := s.selectLocked(u, msg, now)
	if len(cards) == 0 {
		return nil, failedPrecondition("no cards available for review in mode " + string(msg.Mode))
	}

	sess := &review.Session{
		ID:         s.newID(),
		UserID:     user.UserID,
		Mode:       msg.Mode,
		StartTime:  now,
		TotalCards: len(cards),
		Cards:      make([]review.SessionCard, len(cards)),
	}
	for i, cs := range cards {
		sess.Cards[i] = review.SessionCard{
			ID:               s.newID(),
			SessionID:        sess.ID,
			Card:             cs.card,
			IntervalBefore:   review.Ptr(cs.card.IntervalDays),
			EaseFactorBefore: review.Ptr(cs.card.EaseFactor),
			ReviewNumber:     cs.card.TotalReviews + 1,
			IsNewCard:        cs.card.IsNew,
			WasDifficult:     cs.card.IsDifficult,
		}
	}
	fillDerived(sess, now)
	u.sessions[sess.ID] = sess
	u.active = sess.ID

	log.Ctx(ctx).Info().Str("user", user.UserID).Str("session", sess.ID).
		Str("mode", string(msg.Mode)).Int("cards", len(cards)).Msg("session-created")
	return connect.NewResponse(sess.Clone()), nil
}

func (s *Service) SubmitReview(ctx context.Context, req *connect.Request[review.SubmitRequest]) (
	*connect.Response[review.Session], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	msg := req.Msg
	if !msg.Outcome.Valid() {
		return nil, invalidArgError("invalid outcome")
	}
	if msg.ResponseTime < 0 {
		return nil, invalidArgError("response time cannot be negative")
	}
	if msg.ConfidenceLevel != nil && (*msg.ConfidenceLevel < 1 || *msg.ConfidenceLevel > 5) {
		return nil, invalidArgError("confidence level must be between 1 and 5")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	if msg.SubmissionID != "" {
		if prev, ok := u.submissions[msg.SubmissionID]; ok {
			log.Ctx(ctx).Info().Str("submission", msg.SubmissionID).Msg("duplicate-submission")
			return connect.NewResponse(prev.Clone()), nil
		}
	}
	sess := u.sessions[msg.SessionID]
	if sess == nil {
		return nil, notFound("no such session")
	}
	if sess.IsCompleted {
		return nil, failedPrecondition("session is already completed")
	}
	idx := slices.IndexFunc(sess.Cards, func(sc review.SessionCard) bool {
		return sc.Card.ID == msg.CardID
	})
	if idx < 0 {
		return nil, notFound("card is not part of this session")
	}
	sc := &sess.Cards[idx]
	// A card answered earlier in the session is answered again after a
	// client-side restart; the new answer replaces the old one.
	rereview := sc.Reviewed()
	cs := u.byID[msg.CardID]
	if cs == nil {
		return nil, notFound("card no longer exists")
	}

	now := s.nower.Now()
	wasNew := cs.card.IsNew
	s.scheduleLocked(cs, msg.Outcome, now)

	correct := msg.Outcome.Correct()
	sc.Card = cs.card
	sc.ResponseTime = msg.ResponseTime
	sc.ReviewOutcome = review.Ptr(msg.Outcome)
	sc.ReviewedAt = review.Ptr(now)
	sc.IntervalAfter = review.Ptr(cs.card.IntervalDays)
	sc.EaseFactorAfter = review.Ptr(cs.card.EaseFactor)
	sc.WasCorrect = review.Ptr(correct)
	sc.Score = review.Ptr(cardScore(msg.Outcome, msg.ResponseTime, msg.HintUsed))
	sc.UserAnswer = msg.UserAnswer
	sc.ConfidenceLevel = msg.ConfidenceLevel
	sc.HintUsed = msg.HintUsed
	sc.MarkedAsDifficult = msg.MarkedAsDifficult
	sc.Notes = msg.Notes
	if msg.MarkedAsDifficult != nil && *msg.MarkedAsDifficult {
		cs.card.IsDifficult = true
	}

	recount(sess)
	sess.CurrentCardIndex = min(idx+1, len(sess.Cards)-1)
	fillDerived(sess, now)

	u.history = append(u.history, reviewEvent{
		at:           now,
		correct:      correct,
		responseTime: msg.ResponseTime,
		wasNew:       wasNew,
	})
	resp := sess.Clone()
	if msg.SubmissionID != "" {
		u.submissions[msg.SubmissionID] = resp
	}
	log.Ctx(ctx).Info().Str("session", sess.ID).Str("card", msg.CardID).
		Str("outcome", string(msg.Outcome)).Bool("rereview", rereview).Float64("interval", cs.card.IntervalDays).
		Time("due", cs.card.DueDate).Msg("card-scored")
	return connect.NewResponse(resp.Clone()), nil
}

// CompleteSession closes a session. Completing one that is already closed
// returns it unchanged.
func (s *Service) CompleteSession(ctx context.Context, req *connect.Request[review.CompleteRequest]) (
	*connect.Response[review.Session], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	sess := u.sessions[req.Msg.SessionID]
	if sess == nil {
		return nil, notFound("no such session")
	}
	if !sess.IsCompleted {
		s.finishLocked(u, sess, s.nower.Now())
		log.Ctx(ctx).Info().Str("session", sess.ID).Int("completed", sess.CompletedCards).
			Int("correct", sess.CorrectAnswers).Msg("session-closed")
	}
	return connect.NewResponse(sess.Clone()), nil
}

// recount derives the session counters from the answered cards, so a card
// answered twice counts once, with its latest answer.
func recount(sess *review.Session) {
	var completed, correct int
	var total int64
	for _, sc := range sess.Cards {
		if !sc.Reviewed() {
			continue
		}
		completed++
		total += sc.ResponseTime
		if sc.WasCorrect != nil && *sc.WasCorrect {
			correct++
		}
	}
	sess.CompletedCards = completed
	sess.CorrectAnswers = correct
	sess.AverageResponseTime = 0
	if completed > 0 {
		sess.AverageResponseTime = float64(total) / float64(completed)
	}
}

func (s *Service) finishLocked(u *userData, sess *review.Session, now time.Time) {
	sess.IsCompleted = true
	sess.EndTime = review.Ptr(now)
	fillDerived(sess, now)
	if u.active == sess.ID {
		u.active = ""
	}
}

// scheduleLocked runs one FSRS repetition and mirrors the result onto the
// card's public fields.
func (s *Service) scheduleLocked(cs *cardState, outcome review.Outcome, now time.Time) {
	rating := fsrs.Rating(outcome.Score())
	schedulingCards := s.fsrs.Repeat(cs.sched, now)
	cs.sched = schedulingCards[rating].Card

	c := &cs.card
	c.IntervalDays = float64(cs.sched.ScheduledDays)
	c.EaseFactor = easeFactor(cs.sched)
	c.DueDate = cs.sched.Due
	c.LastReviewed = review.Ptr(now)
	c.TotalReviews++
	if outcome.Correct() {
		c.CorrectReviews++
		c.ConsecutiveCorrect++
	} else {
		c.ConsecutiveCorrect = 0
	}
	c.RetentionRate = progress.Accuracy(c.CorrectReviews, c.TotalReviews)
	c.DifficultyLevel = (cs.sched.Difficulty - 1) / 9
	c.IsNew = false
	c.IsDifficult = cs.sched.Lapses >= DifficultLapses || (c.TotalReviews >= 3 && c.RetentionRate < 50)
}

// easeFactor maps FSRS difficulty (1 easiest, 10 hardest) onto the familiar
// SM-2 ease scale of 1.3 to 3.0.
func easeFactor(c fsrs.Card) float64 {
	d := c.Difficulty
	if d == 0 {
		return 2.5
	}
	d = math.Max(1, math.Min(10, d))
	return math.Round((3.0-(d-1)/9*1.7)*100) / 100
}

// cardScore is out of 100: the outcome sets the base, slow answers and
// hints take some off.
func cardScore(o review.Outcome, responseTime int64, hintUsed *bool) float64 {
	base := map[review.Outcome]float64{
		review.OutcomeAgain: 0,
		review.OutcomeHard:  60,
		review.OutcomeGood:  85,
		review.OutcomeEasy:  100,
	}[o]
	if responseTime > 10000 {
		base *= 0.9
	}
	if hintUsed != nil && *hintUsed {
		base *= 0.8
	}
	return math.Round(base*100) / 100
}

func fillDerived(sess *review.Session, now time.Time) {
	end := now
	if sess.EndTime != nil {
		end = *sess.EndTime
	}
	accuracy := progress.Accuracy(sess.CorrectAnswers, sess.CompletedCards)
	duration := progress.Duration(sess.StartTime, &end)
	remaining := sess.TotalCards - sess.CompletedCards
	var pct, perMinute, total, velocity float64
	var learned, mastered int
	if sess.TotalCards > 0 {
		pct = float64(sess.CompletedCards) / float64(sess.TotalCards) * 100
	}
	minutes := float64(duration) / 60
	if minutes > 0 {
		perMinute = float64(sess.CompletedCards) / minutes
	}
	for _, sc := range sess.Cards {
		if sc.Score != nil {
			total += *sc.Score
		}
		if sc.WasCorrect == nil || !*sc.WasCorrect {
			continue
		}
		if sc.IsNewCard {
			learned++
		}
		if sc.WasDifficult {
			mastered++
		}
	}
	if minutes > 0 {
		velocity = float64(learned) / minutes
	}
	// Four cards a minute counts as full pace.
	efficiency := accuracy / 100 * math.Min(1, perMinute/4)

	sess.SessionAccuracy = review.Ptr(accuracy)
	sess.SessionDuration = review.Ptr(duration)
	sess.RemainingCards = review.Ptr(remaining)
	sess.ProgressPercentage = review.Ptr(pct)
	sess.CardsPerMinute = review.Ptr(perMinute)
	sess.TotalSessionScore = review.Ptr(total)
	sess.EfficiencyScore = review.Ptr(efficiency)
	sess.NewCardsLearned = review.Ptr(learned)
	sess.DifficultCardsMastered = review.Ptr(mastered)
	sess.LearningVelocity = review.Ptr(velocity)
}
