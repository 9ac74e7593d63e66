package reviewservice

import "github.com/domino14/review_engine/internal/review"

// SampleWords is a small Spanish starter deck.
var SampleWords = []review.Word{
	{Text: "perro", Translation: "dog", Type: review.WordTypeNoun, Category: "animals", DifficultyLevel: 1,
		ExampleSentence: "El perro duerme.", ExampleTranslation: "The dog sleeps."},
	{Text: "gato", Translation: "cat", Type: review.WordTypeNoun, Category: "animals", DifficultyLevel: 1},
	{Text: "caballo", Translation: "horse", Type: review.WordTypeNoun, Category: "animals", DifficultyLevel: 2},
	{Text: "comer", Translation: "to eat", Type: review.WordTypeVerb, Category: "basics", DifficultyLevel: 1,
		ExampleSentence: "Quiero comer ahora.", ExampleTranslation: "I want to eat now."},
	{Text: "beber", Translation: "to drink", Type: review.WordTypeVerb, Category: "basics", DifficultyLevel: 1},
	{Text: "aprender", Translation: "to learn", Type: review.WordTypeVerb, Category: "basics", DifficultyLevel: 3},
	{Text: "rápido", Translation: "fast", Type: review.WordTypeAdjective, Category: "basics", DifficultyLevel: 2},
	{Text: "despacio", Translation: "slowly", Type: review.WordTypeAdverb, Category: "basics", DifficultyLevel: 4},
	{Text: "sin embargo", Translation: "however", Type: review.WordTypePhrase, Category: "connectors",
		DifficultyLevel: 6, Pronunciation: "sin em-BAR-go"},
	{Text: "aprovechar", Translation: "to make the most of", Type: review.WordTypeVerb, Category: "advanced",
		DifficultyLevel: 7},
	{Text: "desarrollar", Translation: "to develop", Type: review.WordTypeVerb, Category: "advanced",
		DifficultyLevel: 6},
	{Text: "madrugar", Translation: "to get up early", Type: review.WordTypeVerb, Category: "advanced",
		DifficultyLevel: 8},
}
