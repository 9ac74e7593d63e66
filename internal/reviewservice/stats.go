package reviewservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/auth"
	"github.com/domino14/review_engine/internal/progress"
	"github.com/domino14/review_engine/internal/review"
)

// secondsPerCard is the pace used to estimate how long a mode takes.
const secondsPerCard = 15

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func todayCounts(u *userData, now time.Time) (newCards, reviews int) {
	for _, ev := range u.history {
		if !sameDay(ev.at, now) {
			continue
		}
		reviews++
		if ev.wasNew {
			newCards++
		}
	}
	return newCards, reviews
}

func availableModes(pool []*cardState, now time.Time) []review.Mode {
	modes := []review.Mode{}
	if len(dueCards(pool, now)) > 0 {
		modes = append(modes, review.ModeDueCards)
	}
	if len(newCards(pool)) > 0 {
		modes = append(modes, review.ModeNewCards)
	}
	if len(difficultCards(pool)) > 0 {
		modes = append(modes, review.ModeDifficultCards)
	}
	if len(pool) > 0 {
		modes = append(modes, review.ModeRandomReview, review.ModeTargetedReview, review.ModeAllCards)
	}
	return modes
}

func parsePeriod(req *review.StatisticsRequest, now time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var err error
	if req.From != "" {
		if from, err = time.ParseInLocation(time.DateOnly, req.From, now.Location()); err != nil {
			return from, to, fmt.Errorf("bad from date: %w", err)
		}
	}
	if req.To != "" {
		if to, err = time.ParseInLocation(time.DateOnly, req.To, now.Location()); err != nil {
			return from, to, fmt.Errorf("bad to date: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, errors.New("period ends before it starts")
	}
	return from, to, nil
}

func (s *Service) GetStatistics(ctx context.Context, req *connect.Request[review.StatisticsRequest]) (
	*connect.Response[review.Statistics], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nower.Now()
	from, to, err := parsePeriod(req.Msg, now)
	if err != nil {
		return nil, invalidArgError(err.Error())
	}
	u := s.userLocked(user.UserID)
	pool := s.activeCardsLocked(u)

	st := &review.Statistics{
		UserID:        user.UserID,
		PeriodStart:   from,
		PeriodEnd:     to,
		DailyMetrics:  []review.DailyMetric{},
		DueCardsCount: len(dueCards(pool, now)),
		NewCardsCount: len(newCards(pool)),
		TotalCards:    len(u.cards),
	}
	byDay := map[string]*review.DailyMetric{}
	correctByDay := map[string]int{}
	var studyMillis int64
	end := to.AddDate(0, 0, 1)
	for _, ev := range u.history {
		if ev.at.Before(from) || !ev.at.Before(end) {
			continue
		}
		day := ev.at.Format(time.DateOnly)
		m := byDay[day]
		if m == nil {
			m = &review.DailyMetric{Date: day}
			byDay[day] = m
		}
		m.CardsReviewed++
		m.StudyTime += ev.responseTime / 1000
		if ev.wasNew {
			m.NewCards++
		}
		st.TotalReviews++
		studyMillis += ev.responseTime
		if ev.correct {
			st.CorrectReviews++
			correctByDay[day]++
		}
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day := d.Format(time.DateOnly)
		if m, ok := byDay[day]; ok {
			m.Accuracy = progress.Accuracy(correctByDay[day], m.CardsReviewed)
			st.DailyMetrics = append(st.DailyMetrics, *m)
		}
	}
	st.AverageAccuracy = progress.Accuracy(st.CorrectReviews, st.TotalReviews)
	st.RetentionRate = st.AverageAccuracy
	st.TotalStudyTime = studyMillis / 1000
	st.StreakDays, st.LongestStreak = streaks(u.history, now)
	return connect.NewResponse(st), nil
}

// streaks returns the run of consecutive study days ending today (or
// yesterday, if nothing has been studied yet today) and the longest run
// ever.
func streaks(history []reviewEvent, now time.Time) (current, longest int) {
	days := map[string]bool{}
	for _, ev := range history {
		days[ev.at.Format(time.DateOnly)] = true
	}
	if len(days) == 0 {
		return 0, 0
	}
	d := now
	if !days[d.Format(time.DateOnly)] {
		d = d.AddDate(0, 0, -1)
	}
	for days[d.Format(time.DateOnly)] {
		current++
		d = d.AddDate(0, 0, -1)
	}
	for day := range days {
		t, _ := time.Parse(time.DateOnly, day)
		if days[t.AddDate(0, 0, -1).Format(time.DateOnly)] {
			continue
		}
		run := 0
		for days[t.Format(time.DateOnly)] {
			run++
			t = t.AddDate(0, 0, 1)
		}
		longest = max(longest, run)
	}
	return current, longest
}

func (s *Service) GetPreferences(ctx context.Context, req *connect.Request[review.Empty]) (
	*connect.Response[review.Preferences], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs := s.userLocked(user.UserID).prefs
	return connect.NewResponse(&prefs), nil
}

func (s *Service) UpdatePreferences(ctx context.Context, req *connect.Request[review.Preferences]) (
	*connect.Response[review.Preferences], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	if err := s.validate.Struct(req.Msg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field()
			}
			return nil, invalidArgError("invalid preferences: " + strings.Join(fields, ", "))
		}
		return nil, invalidArgError(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(user.UserID)
	prefs := *req.Msg
	prefs.UserID = user.UserID
	u.prefs = prefs
	log.Ctx(ctx).Info().Str("user", user.UserID).Interface("prefs", prefs).Msg("preferences-updated")
	return connect.NewResponse(&prefs), nil
}

var modeText = map[review.Mode][2]string{
	review.ModeDueCards:       {"Due cards", "Cards scheduled for review today"},
	review.ModeNewCards:       {"New cards", "Words you haven't studied yet"},
	review.ModeDifficultCards: {"Difficult cards", "Words you keep getting wrong"},
	review.ModeRandomReview:   {"Random review", "A random selection from your deck"},
	review.ModeTargetedReview: {"Targeted review", "Cards matching the filters you choose"},
	review.ModeAllCards:       {"Mixed review", "Due, new and random cards together"},
}

func (s *Service) GetAvailableModes(ctx context.Context, req *connect.Request[review.Empty]) (
	*connect.Response[review.ModesResponse], error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, unauthenticated("user not authenticated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nower.Now()
	u := s.userLocked(user.UserID)
	pool := s.activeCardsLocked(u)
	counts := map[review.Mode]int{
		review.ModeDueCards:       len(dueCards(pool, now)),
		review.ModeNewCards:       len(newCards(pool)),
		review.ModeDifficultCards: len(difficultCards(pool)),
		review.ModeRandomReview:   len(pool),
		review.ModeTargetedReview: len(pool),
		review.ModeAllCards:       len(pool),
	}
	recommended := review.ModeDueCards
	if counts[review.ModeDueCards] == 0 {
		recommended = review.ModeNewCards
	}

	modes := make([]review.ModeInfo, 0, len(review.Modes))
	for _, m := range review.Modes {
		n := min(counts[m], u.prefs.SessionGoal)
		modes = append(modes, review.ModeInfo{
			Mode:          m,
			Name:          modeText[m][0],
			Description:   modeText[m][1],
			Available:     counts[m] > 0,
			CardCount:     counts[m],
			IsRecommended: m == recommended && counts[m] > 0,
			EstimatedTime: int(math.Ceil(float64(n*secondsPerCard) / 60)),
		})
	}
	return connect.NewResponse(&review.ModesResponse{Modes: modes}), nil
}
