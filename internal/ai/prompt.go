package ai

import (
	"fmt"

	"github.com/example/flashdeck/internal/domain"
)

const flashcardSystem = "You are a learning scientist who writes flashcards optimized for " +
	"long-term retention. You follow the minimum information principle: each card tests " +
	"one atomic concept through active recall."

const explainerSystem = "You are a patient tutor who makes difficult material feel simple " +
	"without making it wrong."

// flashcardPrompt builds the generation prompt. The distribution guidance per
// complexity level follows the card-design practice the product was built
// around: definitions first for beginners, mechanisms and trade-offs for
// intermediate, edge cases and theory for advanced.
func flashcardPrompt(topic string, numCards int, complexity string) string {
	var distribution string
	switch complexity {
	case domain.ComplexityBeginner:
		distribution = "Favor core definitions and simple how-it-works explanations, " +
			"with concrete examples and a few cards linking concepts together."
	case domain.ComplexityAdvanced:
		distribution = "Favor edge cases, boundary conditions, optimization trade-offs, " +
			"and formal or mathematical underpinnings; assume the fundamentals are known."
	default:
		distribution = "Balance reinforced definitions, mechanisms, real-world applications, " +
			"comparisons between alternatives, and common pitfalls."
	}

	return fmt.Sprintf(`Create %d flashcards for mastering the topic below.

TOPIC: %s
COMPLEXITY: %s

Rules:
- Each card tests exactly one concept; split multi-part answers into separate cards.
- Questions force recall ("Why does X happen?"), never yes/no recognition.
- Answers are thorough mini-lessons of 3-8 sentences including context and an example.
- Build hierarchically: early cards are prerequisites for later ones.
- %s

Respond with ONLY a JSON object in this exact shape, no other text:
{"flashcards": [{"question": "...", "answer": "..."}, ...]}`,
		numCards, topic, complexity, distribution)
}
