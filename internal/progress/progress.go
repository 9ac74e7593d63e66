// Package progress derives display metrics from a review session. Nothing
// here is stored; it is cheap enough to recompute on every read.
package progress

import (
	"fmt"
	"time"

	"github.com/domino14/review_engine/internal/review"
)

// Snapshot is the learner-facing view of how far along a session is.
type Snapshot struct {
	Current         int     `json:"current"`
	Total           int     `json:"total"`
	Percentage      float64 `json:"percentage"`
	Completed       int     `json:"completed"`
	Correct         int     `json:"correct"`
	Accuracy        float64 `json:"accuracy"`
	Remaining       int     `json:"remaining"`
	CardsPerMinute  float64 `json:"cardsPerMinute"`
	EfficiencyScore float64 `json:"efficiencyScore"`
	SessionScore    float64 `json:"sessionScore"`
}

// Calculate computes the snapshot for a session whose pointer is at
// currentIndex.
func Calculate(s *review.Session, currentIndex int) Snapshot {
	snap := Snapshot{
		Current:   currentIndex + 1,
		Total:     s.TotalCards,
		Completed: s.CompletedCards,
		Correct:   s.CorrectAnswers,
		Accuracy:  Accuracy(s.CorrectAnswers, s.CompletedCards),
		Remaining: s.TotalCards - s.CompletedCards,
	}
	if s.TotalCards > 0 {
		snap.Percentage = float64(currentIndex+1) / float64(s.TotalCards) * 100
	}
	// The service may carry missed cards over by its own rules.
	if s.RemainingCards != nil {
		snap.Remaining = *s.RemainingCards
	}
	if s.CardsPerMinute != nil {
		snap.CardsPerMinute = *s.CardsPerMinute
	}
	if s.EfficiencyScore != nil {
		snap.EfficiencyScore = *s.EfficiencyScore
	}
	if s.TotalSessionScore != nil {
		snap.SessionScore = *s.TotalSessionScore
	}
	return snap
}

// Accuracy is correct/completed as a percentage, or 0 before anything has
// been answered.
func Accuracy(correct, completed int) float64 {
	if completed <= 0 {
		return 0
	}
	return float64(correct) / float64(completed) * 100
}

// FormatResponseTime renders a response time the way the review screen
// shows it: milliseconds, then seconds, then minutes.
func FormatResponseTime(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%.1fm", float64(ms)/60000)
	}
}

// Duration returns the whole seconds between start and end. A nil end means
// the session is still running.
func Duration(start time.Time, end *time.Time) int64 {
	e := time.Now()
	if end != nil {
		e = *end
	}
	return int64(e.Sub(start) / time.Second)
}
