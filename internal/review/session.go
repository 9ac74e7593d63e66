package review

import (
	"errors"
	"fmt"
	"time"
)

// Word is the vocabulary content carried by a card.
type Word struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Translation        string   `json:"translation"`
	Pronunciation      string   `json:"pronunciation,omitempty"`
	Type               WordType `json:"type"`
	Category           string   `json:"category,omitempty"`
	DifficultyLevel    int      `json:"difficultyLevel"`
	ExampleSentence    string   `json:"exampleSentence,omitempty"`
	ExampleTranslation string   `json:"exampleTranslation,omitempty"`
}

// Card is the scheduling state of a word as computed by the review service.
// The client never modifies it.
type Card struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	Word               Word       `json:"word"`
	IntervalDays       float64    `json:"intervalDays"`
	EaseFactor         float64    `json:"easeFactor"`
	DueDate            time.Time  `json:"dueDate"`
	LastReviewed       *time.Time `json:"lastReviewed,omitempty"`
	TotalReviews       int        `json:"totalReviews"`
	CorrectReviews     int        `json:"correctReviews"`
	ConsecutiveCorrect int        `json:"consecutiveCorrect"`
	DifficultyLevel    float64    `json:"difficultyLevel"`
	RetentionRate      float64    `json:"retentionRate"`
	IsNew              bool       `json:"isNew"`
	IsDifficult        bool       `json:"isDifficult"`
	IsSuspended        bool       `json:"isSuspended"`
}

// SessionCard is one occurrence of a card inside a session. The review
// fields are filled in by the service once the card has been answered.
type SessionCard struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"sessionId"`
	Card              Card       `json:"card"`
	ResponseTime      int64      `json:"responseTime"`
	ReviewOutcome     *Outcome   `json:"reviewOutcome,omitempty"`
	ReviewedAt        *time.Time `json:"reviewedAt,omitempty"`
	IntervalBefore    *float64   `json:"intervalBeforeReview,omitempty"`
	IntervalAfter     *float64   `json:"intervalAfterReview,omitempty"`
	EaseFactorBefore  *float64   `json:"easeFactorBeforeReview,omitempty"`
	EaseFactorAfter   *float64   `json:"easeFactorAfterReview,omitempty"`
	ReviewNumber      int        `json:"reviewNumber,omitempty"`
	WasCorrect        *bool      `json:"wasCorrect,omitempty"`
	Score             *float64   `json:"score,omitempty"`
	UserAnswer        *string    `json:"userAnswer,omitempty"`
	HintUsed          *bool      `json:"hintUsed,omitempty"`
	ConfidenceLevel   *int       `json:"confidenceLevel,omitempty"`
	MarkedAsDifficult *bool      `json:"markedAsDifficult,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	IsNewCard         bool       `json:"isNewCard,omitempty"`
	WasDifficult      bool       `json:"wasDifficult,omitempty"`
}

// Reviewed reports whether the service has recorded an outcome for the card.
func (c *SessionCard) Reviewed() bool {
	return c.ReviewOutcome != nil
}

// ResetReview drops everything recorded about this occurrence so it can be
// asked again.
func (c *SessionCard) ResetReview() {
	c.ResponseTime = 0
	c.ReviewOutcome = nil
	c.ReviewedAt = nil
	c.IntervalAfter = nil
	c.EaseFactorAfter = nil
	c.WasCorrect = nil
	c.Score = nil
	c.UserAnswer = nil
	c.HintUsed = nil
	c.ConfidenceLevel = nil
	c.MarkedAsDifficult = nil
	c.Notes = nil
}

// Session is the authoritative state of one review run, as last confirmed
// by the review service.
type Session struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"userId"`
	Mode                Mode          `json:"mode"`
	StartTime           time.Time     `json:"startTime"`
	EndTime             *time.Time    `json:"endTime,omitempty"`
	TotalCards          int           `json:"totalCards"`
	CompletedCards      int           `json:"completedCards"`
	CorrectAnswers      int           `json:"correctAnswers"`
	AverageResponseTime float64       `json:"averageResponseTime"`
	IsCompleted         bool          `json:"isCompleted"`
	Cards               []SessionCard `json:"cards"`
	CurrentCardIndex    int           `json:"currentCardIndex"`

	// Computed by the service. Advisory only.
	SessionAccuracy        *float64 `json:"sessionAccuracy,omitempty"`
	SessionDuration        *int64   `json:"sessionDuration,omitempty"`
	CardsPerMinute         *float64 `json:"cardsPerMinute,omitempty"`
	TotalSessionScore      *float64 `json:"totalSessionScore,omitempty"`
	EfficiencyScore        *float64 `json:"efficiencyScore,omitempty"`
	NewCardsLearned        *int     `json:"newCardsLearned,omitempty"`
	DifficultCardsMastered *int     `json:"difficultCardsMastered,omitempty"`
	LearningVelocity       *float64 `json:"learningVelocity,omitempty"`
	RemainingCards         *int     `json:"remainingCards,omitempty"`
	ProgressPercentage     *float64 `json:"progressPercentage,omitempty"`
}

var ErrInvalidSession = errors.New("invalid session")

// Validate checks the counting invariants of a session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	}
	if s.CompletedCards < 0 || s.CorrectAnswers < 0 {
		return fmt.Errorf("%w: negative counters", ErrInvalidSession)
	}
	if s.CompletedCards > s.TotalCards {
		return fmt.Errorf("%w: completed %d > total %d", ErrInvalidSession,
			s.CompletedCards, s.TotalCards)
	}
	if s.CorrectAnswers > s.CompletedCards {
		return fmt.Errorf("%w: correct %d > completed %d", ErrInvalidSession,
			s.CorrectAnswers, s.CompletedCards)
	}
	if !s.IsCompleted && s.TotalCards > 0 &&
		(s.CurrentCardIndex < 0 || s.CurrentCardIndex >= s.TotalCards) {
		return fmt.Errorf("%w: card index %d out of range", ErrInvalidSession,
			s.CurrentCardIndex)
	}
	return nil
}

// Clone returns a deep copy, so the receiver can be handed out without
// exposing the original to mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.EndTime = clonePtr(s.EndTime)
	c.SessionAccuracy = clonePtr(s.SessionAccuracy)
	c.SessionDuration = clonePtr(s.SessionDuration)
	c.CardsPerMinute = clonePtr(s.CardsPerMinute)
	c.TotalSessionScore = clonePtr(s.TotalSessionScore)
	c.EfficiencyScore = clonePtr(s.EfficiencyScore)
	c.NewCardsLearned = clonePtr(s.NewCardsLearned)
	c.DifficultCardsMastered = clonePtr(s.DifficultCardsMastered)
	c.LearningVelocity = clonePtr(s.LearningVelocity)
	c.RemainingCards = clonePtr(s.RemainingCards)
	c.ProgressPercentage = clonePtr(s.ProgressPercentage)
	if s.Cards != nil {
		c.Cards = make([]SessionCard, len(s.Cards))
		for i := range s.Cards {
			c.Cards[i] = s.Cards[i].clone()
		}
	}
	return &c
}

func (c SessionCard) clone() SessionCard {
	c.Card.LastReviewed = clonePtr(c.Card.LastReviewed)
	c.ReviewOutcome = clonePtr(c.ReviewOutcome)
	c.ReviewedAt = clonePtr(c.ReviewedAt)
	c.IntervalBefore = clonePtr(c.IntervalBefore)
	c.IntervalAfter = clonePtr(c.IntervalAfter)
	c.EaseFactorBefore = clonePtr(c.EaseFactorBefore)
	c.EaseFactorAfter = clonePtr(c.EaseFactorAfter)
	c.WasCorrect = clonePtr(c.WasCorrect)
	c.Score = clonePtr(c.Score)
	c.UserAnswer = clonePtr(c.UserAnswer)
	c.HintUsed = clonePtr(c.HintUsed)
	c.ConfidenceLevel = clonePtr(c.ConfidenceLevel)
	c.MarkedAsDifficult = clonePtr(c.MarkedAsDifficult)
	c.Notes = clonePtr(c.Notes)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for filling in optional fields.
func Ptr[T any](v T) *T {
	return &v
}
