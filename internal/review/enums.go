package review

// Mode selects which cards the review service puts in a session.
type Mode string

const (
	ModeDueCards       Mode = "DUE_CARDS"
	ModeDifficultCards Mode = "DIFFICULT_CARDS"
	ModeRandomReview   Mode = "RANDOM_REVIEW"
	ModeNewCards       Mode = "NEW_CARDS"
	ModeTargetedReview Mode = "TARGETED_REVIEW"
	ModeAllCards       Mode = "ALL_CARDS"
)

// Modes lists every mode the review service understands.
var Modes = []Mode{
	ModeDueCards, ModeDifficultCards, ModeRandomReview,
	ModeNewCards, ModeTargetedReview, ModeAllCards,
}

func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Outcome is the learner's self-rated recall quality for one card. The
// client passes it through untouched; the service does all scheduling.
type Outcome string

const (
	OutcomeAgain Outcome = "AGAIN"
	OutcomeHard  Outcome = "HARD"
	OutcomeGood  Outcome = "GOOD"
	OutcomeEasy  Outcome = "EASY"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAgain, OutcomeHard, OutcomeGood, OutcomeEasy:
		return true
	}
	return false
}

// Correct reports whether the outcome counts as a correct answer. Only used
// for display; session counters always come from the service.
func (o Outcome) Correct() bool {
	return o == OutcomeGood || o == OutcomeEasy
}

// Score maps the outcome onto the 1-4 rating scale used by schedulers.
// Returns 0 for an unknown outcome.
func (o Outcome) Score() int {
	switch o {
	case OutcomeAgain:
		return 1
	case OutcomeHard:
		return 2
	case OutcomeGood:
		return 3
	case OutcomeEasy:
		return 4
	}
	return 0
}

// OutcomeFromScore is the inverse of Score.
func OutcomeFromScore(score int) (Outcome, bool) {
	switch score {
	case 1:
		return OutcomeAgain, true
	case 2:
		return OutcomeHard, true
	case 3:
		return OutcomeGood, true
	case 4:
		return OutcomeEasy, true
	}
	return "", false
}

type WordType string

const (
	WordTypeNoun      WordType = "NOUN"
	WordTypeVerb      WordType = "VERB"
	WordTypeAdjective WordType = "ADJECTIVE"
	WordTypeAdverb    WordType = "ADVERB"
	WordTypePhrase    WordType = "PHRASE"
	WordTypeOther     WordType = "OTHER"
)
