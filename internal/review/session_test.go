package review

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func testSession() *Session {
	end := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	return &Session{
		ID:             "s1",
		UserID:         "42",
		Mode:           ModeDueCards,
		StartTime:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		EndTime:        &end,
		TotalCards:     2,
		CompletedCards: 1,
		CorrectAnswers: 1,
		Cards: []SessionCard{
			{ID: "sc1", Card: Card{ID: "c1"}, ReviewOutcome: Ptr(OutcomeGood), ResponseTime: 1200},
			{ID: "sc2", Card: Card{ID: "c2"}},
		},
		SessionAccuracy: Ptr(100.0),
	}
}

func TestCloneIsDeep(t *testing.T) {
	is := is.New(t)
	s := testSession()
	c := s.Clone()

	c.Cards[0].ID = "changed"
	*c.Cards[0].ReviewOutcome = OutcomeAgain
	*c.SessionAccuracy = 5
	c.EndTime = nil

	is.Equal(s.Cards[0].ID, "sc1")
	is.Equal(*s.Cards[0].ReviewOutcome, OutcomeGood)
	is.Equal(*s.SessionAccuracy, 100.0)
	is.True(s.EndTime != nil)
	is.Equal((*Session)(nil).Clone(), nil)
}

func TestValidate(t *testing.T) {
	is := is.New(t)
	is.NoErr(testSession().Validate())

	s := testSession()
	s.CorrectAnswers = 2
	is.True(errors.Is(s.Validate(), ErrInvalidSession))

	s = testSession()
	s.CompletedCards = 3
	is.True(errors.Is(s.Validate(), ErrInvalidSession))

	s = testSession()
	s.CurrentCardIndex = 2
	is.True(errors.Is(s.Validate(), ErrInvalidSession))

	// A completed session may point past the end.
	s.IsCompleted = true
	is.NoErr(s.Validate())
}

func TestResetReview(t *testing.T) {
	is := is.New(t)
	s := testSession()
	s.Cards[0].ResetReview()
	is.True(!s.Cards[0].Reviewed())
	is.Equal(s.Cards[0].ResponseTime, int64(0))
	is.Equal(s.Cards[0].Card.ID, "c1")
}

func TestOutcomes(t *testing.T) {
	is := is.New(t)
	for i, o := range []Outcome{OutcomeAgain, OutcomeHard, OutcomeGood, OutcomeEasy} {
		is.True(o.Valid())
		is.Equal(o.Score(), i+1)
		back, ok := OutcomeFromScore(i + 1)
		is.True(ok)
		is.Equal(back, o)
	}
	is.True(!Outcome("MAYBE").Valid())
	is.True(OutcomeGood.Correct())
	is.True(!OutcomeHard.Correct())
	_, ok := OutcomeFromScore(5)
	is.True(!ok)

	is.True(ModeTargetedReview.Valid())
	is.True(!Mode("SOMETIMES").Valid())
}
