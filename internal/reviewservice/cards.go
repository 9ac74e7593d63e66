package reviewservice

import (
	"cmp"
	"context"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/open-spaced-repetition/go-fsrs/v3"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/auth"
	"github.com/domino14/review_engine/internal/review"
)

func (s *Service) activeCardsLocked(u *userData) []*cardState {
	out := make([]*cardState, 0, len(u.cards))
	for _, cs := range u.cards {
		if !cs.card.IsSuspended {
			out = append(out, cs)
		}
	}
	return out
}

func isDue(cs *cardState, now time.Time) bool {
	return !cs.card.IsNew && !cs.card.DueDate.After(now)
}

func dueCards(pool []*cardState, now time.Time) []*cardState {
	out := []*cardState{}
	for _, cs := range pool {
		if isDue(cs, now) {
			out = append(out, cs)
		}
	}
	slices.SortStableFunc(out, func(a, b *cardState) int {
		return a.card.DueDate.Compare(b.card.DueDate)
	})
	return out
}

func newCards(pool []*cardState) []*cardState {
	out := []*cardState{}
	for _, cs := range pool {
		if cs.card.IsNew {
			out = append(out, cs)
		}
	}
	return out
}

// difficultCards are ordered hardest first.
func difficultCards(pool []*cardState) []*cardState {
	out := []*cardState{}
	for _, cs := range pool {
		if cs.card.IsDifficult {
			out = append(out, cs)
		}
	}
	slices.SortStableFunc(out, func(a, b *cardState) int {
		if c := cmp.Compare(b.card.DifficultyLevel, a.card.DifficultyLevel); c != 0 {
			return c
		}
		return cmp.Compare(a.card.RetentionRate, b.card.RetentionRate)
	})
	return out
}

func (s *Service) randomCards(pool []*cardState) []*cardState {
	out := slices.Clone(pool)
	s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func head(cards []*cardState, n int) []*cardState {
	if len(cards) > n {
		return cards[:n]
	}
	return cards
}

func filterCards(pool []*cardState, req *review.StartRequest) []*cardState {
	out := make([]*cardState, 0, len(pool))
	for _, cs := range pool {
		w := cs.card.Word
		// Words are grouped into lists by category.
		if len(req.IncludeWordListIDs) > 0 && !slices.Contains(req.IncludeWordListIDs, w.Category) {
			continue
		}
		if slices.Contains(req.ExcludeWordListIDs, w.Category) {
			continue
		}
		if len(req.IncludeWordTypes) > 0 && !slices.Contains(req.IncludeWordTypes, w.Type) {
			continue
		}
		if slices.Contains(req.ExcludeWordTypes, w.Type) {
			continue
		}
		if r := req.DifficultyRange; r != nil &&
			(cs.card.DifficultyLevel < r[0] || cs.card.DifficultyLevel > r[1]) {
			continue
		}
		out = append(out, cs)
	}
	return out
}

// selectLocked picks the cards for a new session.
func (s *Service) selectLocked(u *userData, req *review.StartRequest, now time.Time) []*cardState {
	pool := filterCards(s.activeCardsLocked(u), req)
	limit := req.Limit
	var picked []*cardState
	switch req.Mode {
	case review.ModeDueCards:
		picked = head(dueCards(pool, now), min(limit, u.prefs.DailyReviewLimit))
	case review.ModeNewCards:
		picked = head(newCards(pool), min(limit, u.prefs.DailyNewCardLimit))
	case review.ModeDifficultCards:
		picked = head(difficultCards(pool), limit)
	case review.ModeRandomReview:
		picked = head(s.randomCards(pool), limit)
	case review.ModeTargetedReview:
		picked = head(dueCards(pool, now), limit)
		if len(picked) == 0 {
			picked = head(newCards(pool), limit)
		}
		if len(picked) == 0 {
			picked = head(s.randomCards(pool), limit)
		}
	case review.ModeAllCards:
		// A mix: due first, then new, then anything else.
		seen := map[string]bool{}
		for _, group := range [][]*cardState{dueCards(pool, now), newCards(pool), s.randomCards(pool)} {
			for _, cs := range group {
				if len(picked) == limit {
					break
				}
				if !seen[cs.card.ID] {
					seen[cs.card.ID] = true
					picked = append(picked, cs)
				}
			}
		}
	}
	picked = slices.Clone(picked)
	if req.PrioritizeNewCards != nil && *req.PrioritizeNewCards {
		slices.SortStableFunc(picked, func(a, b *cardState) int {
			switch {
			case a.card.IsNew == b.card.IsNew:
				return 0
			case a.card.IsNew:
				return -1
			}
			return 1
		})
	}
	if req.Shuffle != nil && *req.Shuffle {
		picked = s.randomCards(picked)
	}
	return picked
}

func publicCards(cards []*cardState) []review.Card {
	out := make([]review.Card, len(cards))
	for i, cs := range cards {
		out[i] = cs.card
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultCardsLimit
	}
	return min(limit, MaxSessionLimit)
}

func (s *Service) GetDueCards(ctx context.Context, req *connect.Request[review.CardsRequest]) (
	*connect.Response[review.DueCardsResponse], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nower.Now()
	u := s.userLocked(user.UserID)
	pool := s.activeCardsLocked(u)
	due := dueCards(pool, now)
	newToday, reviewsToday := todayCounts(u, now)

	return connect.NewResponse(&review.DueCardsResponse{
		DueCards:          publicCards(head(due, clampLimit(req.Msg.Limit))),
		TotalDue:          len(due),
		TotalNew:          len(newCards(pool)),
		TotalDifficult:    len(difficultCards(pool)),
		TotalActive:       len(pool),
		RecommendedLimit:  min(len(due), u.prefs.SessionGoal),
		DailyLimit:        u.prefs.DailyReviewLimit,
		ExceedsDailyLimit: len(due) > u.prefs.DailyReviewLimit,
		NewCardsToday:     newToday,
		ReviewsToday:      reviewsToday,
		AvailableModes:    availableModes(pool, now),
	}), nil
}

func (s *Service) listCards(ctx context.Context, limit int, pick func(pool []*cardState) []*cardState) (
	*connect.Response[review.CardsResponse], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	cards := head(pick(s.activeCardsLocked(u)), clampLimit(limit))
	return connect.NewResponse(&review.CardsResponse{Cards: publicCards(cards)}), nil
}

func (s *Service) GetNewCards(ctx context.Context, req *connect.Request[review.CardsRequest]) (
	*connect.Response[review.CardsResponse], error) {
	return s.listCards(ctx, req.Msg.Limit, newCards)
}

func (s *Service) GetDifficultCards(ctx context.Context, req *connect.Request[review.CardsRequest]) (
	*connect.Response[review.CardsResponse], error) {
	return s.listCards(ctx, req.Msg.Limit, difficultCards)
}

func (s *Service) GetRandomCards(ctx context.Context, req *connect.Request[review.CardsRequest]) (
	*connect.Response[review.CardsResponse], error) {
	return s.listCards(ctx, req.Msg.Limit, s.randomCards)
}

// updateCard applies f to one of the caller's cards.
func (s *Service) updateCard(ctx context.Context, cardID string, f func(u *userData, cs *cardState)) (
	*connect.Response[review.Empty], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	if cardID == "" {
		return nil, invalidArgError("need a card id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	cs := u.byID[cardID]
	if cs == nil {
		return nil, notFound("card not found")
	}
	f(u, cs)
	return connect.NewResponse(&review.Empty{}), nil
}

func (s *Service) SuspendCard(ctx context.Context, req *connect.Request[review.CardRequest]) (
	*connect.Response[review.Empty], error) {
	return s.updateCard(ctx, req.Msg.CardID, func(u *userData, cs *cardState) {
		cs.card.IsSuspended = true
		log.Ctx(ctx).Info().Str("card", cs.card.ID).Msg("card-suspended")
	})
}

func (s *Service) UnsuspendCard(ctx context.Context, req *connect.Request[review.CardRequest]) (
	*connect.Response[review.Empty], error) {
	return s.updateCard(ctx, req.Msg.CardID, func(u *userData, cs *cardState) {
		cs.card.IsSuspended = false
	})
}

// ResetCard forgets a card's review history; it becomes new again.
func (s *Service) ResetCard(ctx context.Context, req *connect.Request[review.CardRequest]) (
	*connect.Response[review.Empty], error) {
	return s.updateCard(ctx, req.Msg.CardID, func(u *userData, cs *cardState) {
		now := s.nower.Now()
		cs.sched = fsrs.NewCard()
		cs.sched.Due = now
		cs.card = review.Card{
			ID:              cs.card.ID,
			UserID:          cs.card.UserID,
			Word:            cs.card.Word,
			EaseFactor:      easeFactor(cs.sched),
			DueDate:         now,
			DifficultyLevel: float64(cs.card.Word.DifficultyLevel) / 10,
			IsNew:           true,
			IsSuspended:     cs.card.IsSuspended,
		}
		log.Ctx(ctx).Info().Str("card", cs.card.ID).Msg("card-reset")
	})
}

func (s *Service) DeleteCard(ctx context.Context, req *connect.Request[review.CardRequest]) (
	*connect.Response[review.Empty], error) {
	return s.updateCard(ctx, req.Msg.CardID, func(u *userData, cs *cardState) {
		delete(u.byID, cs.card.ID)
		u.cards = slices.DeleteFunc(u.cards, func(c *cardState) bool { return c == cs })
		log.Ctx(ctx).Info().Str("card", cs.card.ID).Msg("card-deleted")
	})
}
