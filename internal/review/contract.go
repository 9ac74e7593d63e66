package review

import "time"

// StartRequest asks the review service to assemble a new session.
type StartRequest struct {
	Mode               Mode        `json:"mode" validate:"required,oneof=DUE_CARDS DIFFICULT_CARDS RANDOM_REVIEW NEW_CARDS TARGETED_REVIEW ALL_CARDS"`
	Limit              int         `json:"limit" validate:"min=1,max=100"`
	IncludeWordListIDs []string    `json:"includeWordListIds,omitempty" validate:"excluded_with=ExcludeWordListIDs"`
	ExcludeWordListIDs []string    `json:"excludeWordListIds,omitempty"`
	IncludeWordTypes   []WordType  `json:"includeWordTypes,omitempty" validate:"excluded_with=ExcludeWordTypes,dive,oneof=NOUN VERB ADJECTIVE ADVERB PHRASE OTHER"`
	ExcludeWordTypes   []WordType  `json:"excludeWordTypes,omitempty" validate:"dive,oneof=NOUN VERB ADJECTIVE ADVERB PHRASE OTHER"`
	DifficultyRange    *[2]float64 `json:"difficultyRange,omitempty"`
	Shuffle            *bool       `json:"shuffle,omitempty"`
	PrioritizeNewCards *bool       `json:"prioritizeNewCards,omitempty"`
}

// SubmitRequest reports the outcome for one card. SubmissionID is generated
// by the client once per answer and repeated on every retry of it, so the
// service can drop duplicates.
type SubmitRequest struct {
	SessionID         string  `json:"sessionId"`
	CardID            string  `json:"cardId"`
	Outcome           Outcome `json:"outcome"`
	ResponseTime      int64   `json:"responseTime"`
	SubmissionID      string  `json:"submissionId"`
	UserAnswer        *string `json:"userAnswer,omitempty"`
	ConfidenceLevel   *int    `json:"confidenceLevel,omitempty"`
	HintUsed          *bool   `json:"hintUsed,omitempty"`
	MarkedAsDifficult *bool   `json:"markedAsDifficult,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

type CompleteRequest struct {
	SessionID string `json:"sessionId"`
}

type ActiveSessionRequest struct{}

// ActiveSessionResponse carries a nil Session when the user has no session
// in progress.
type ActiveSessionResponse struct {
	Session *Session `json:"session,omitempty"`
}

type CardsRequest struct {
	Limit int `json:"limit"`
}

type CardsResponse struct {
	Cards []Card `json:"cards"`
}

type CardRequest struct {
	CardID string `json:"cardId"`
}

type Empty struct{}

type DueCardsResponse struct {
	DueCards          []Card `json:"dueCards"`
	TotalDue          int    `json:"totalDue"`
	TotalNew          int    `json:"totalNew"`
	TotalDifficult    int    `json:"totalDifficult"`
	TotalActive       int    `json:"totalActive"`
	RecommendedLimit  int    `json:"recommendedLimit"`
	DailyLimit        int    `json:"dailyLimit"`
	ExceedsDailyLimit bool   `json:"exceedsDailyLimit"`
	NewCardsToday     int    `json:"newCardsToday"`
	ReviewsToday      int    `json:"reviewsToday"`
	AvailableModes    []Mode `json:"availableReviewModes"`
}

// StatisticsRequest bounds the reporting period by calendar date
// (YYYY-MM-DD). Empty bounds mean the current month.
type StatisticsRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type DailyMetric struct {
	Date          string  `json:"date"`
	CardsReviewed int     `json:"cardsReviewed"`
	Accuracy      float64 `json:"accuracy"`
	StudyTime     int64   `json:"studyTime"`
	NewCards      int     `json:"newCards"`
}

type Statistics struct {
	UserID          string        `json:"userId"`
	PeriodStart     time.Time     `json:"periodStart"`
	PeriodEnd       time.Time     `json:"periodEnd"`
	TotalReviews    int           `json:"totalReviews"`
	CorrectReviews  int           `json:"correctReviews"`
	AverageAccuracy float64       `json:"averageAccuracy"`
	TotalStudyTime  int64         `json:"totalStudyTime"`
	StreakDays      int           `json:"streakDays"`
	LongestStreak   int           `json:"longestStreak"`
	RetentionRate   float64       `json:"retentionRate"`
	DailyMetrics    []DailyMetric `json:"dailyMetrics"`
	DueCardsCount   int           `json:"dueCardsCount"`
	NewCardsCount   int           `json:"newCardsCount"`
	TotalCards      int           `json:"totalCards"`
}

type Preferences struct {
	UserID            string `json:"userId"`
	DailyReviewLimit  int    `json:"dailyReviewLimit" validate:"min=1,max=1000"`
	DailyNewCardLimit int    `json:"dailyNewCardLimit" validate:"min=0,max=200"`
	SessionGoal       int    `json:"sessionGoal" validate:"min=1,max=100"`
	DefaultReviewMode Mode   `json:"defaultReviewMode" validate:"required,oneof=DUE_CARDS DIFFICULT_CARDS RANDOM_REVIEW NEW_CARDS TARGETED_REVIEW ALL_CARDS"`
	AutoAdvanceCards  bool   `json:"autoAdvanceCards"`
	ShowAnswerDelay   int    `json:"showAnswerDelay" validate:"min=0"`
	EnableHints       bool   `json:"enableHints"`
	VacationMode      bool   `json:"vacationMode"`
}

// DefaultPreferences are what a user gets before changing anything.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:            userID,
		DailyReviewLimit:  100,
		DailyNewCardLimit: 20,
		SessionGoal:       20,
		DefaultReviewMode: ModeDueCards,
		AutoAdvanceCards:  true,
	}
}

type ModeInfo struct {
	Mode          Mode   `json:"mode"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Available     bool   `json:"available"`
	CardCount     int    `json:"cardCount"`
	IsRecommended bool   `json:"isRecommended"`
	EstimatedTime int    `json:"estimatedTime"`
}

type ModesResponse struct {
	Modes []ModeInfo `json:"modes"`
}
