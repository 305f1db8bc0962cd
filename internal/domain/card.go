package domain

import "time"

// Complexity levels a deck can be generated at.
const (
	ComplexityBeginner     = "Beginner"
	ComplexityIntermediate = "Intermediate"
	ComplexityAdvanced     = "Advanced"
)

// Deck groups the flashcards generated or imported for a single topic.
type Deck struct {
	ID         string
	Topic      string
	NumCards   int
	Complexity string
	CreatedAt  time.Time
}

// Card is a single question-answer flashcard belonging to a deck.
type Card struct {
	ID               int64
	DeckID           string
	Question         string
	Answer           string
	Hash             string
	TimesReviewed    int
	LastReviewedAt   time.Time
	ExplanationELI5  string
	ExplanationELI10 string
	Mnemonic         string
	CreatedAt        time.Time
}

// CardProgress is the spaced-repetition state of one card. A card with no
// progress record has never been rated and is always due.
type CardProgress struct {
	CardID         int64
	EaseFactor     float64
	IntervalDays   int
	Repetitions    int
	NextReviewAt   time.Time
	LastReviewedAt time.Time
}

// ReviewLog records a single rating event for a card.
type ReviewLog struct {
	CardID    int64
	Rating    string
	Timestamp time.Time
}
