package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsableResponse is returned when no flashcard JSON can be recovered
// from the model output.
var ErrUnparsableResponse = errors.New("ai: could not parse flashcards from response")

type flashcardPayload struct {
	Flashcards []GeneratedCard `json:"flashcards"`
}

// parseFlashcards recovers the flashcard list from model output. Models
// sometimes wrap the JSON in code fences or surround it with prose, so after
// a direct parse fails we try the fenced block, then the outermost braces,
// then a bare top-level array.
func parseFlashcards(text string) ([]GeneratedCard, error) {
	cleaned := strings.TrimSpace(text)

	if cards, ok := tryPayload(cleaned); ok {
		return cards, nil
	}

	if fenced, ok := extractFenced(cleaned); ok {
		if cards, ok := tryPayload(fenced); ok {
			return cards, nil
		}
	}

	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if cards, ok := tryPayload(cleaned[start : end+1]); ok {
			return cards, nil
		}
	}

	if start, end := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); start >= 0 && end > start {
		var cards []GeneratedCard
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &cards); err == nil && validCards(cards) {
			return cards, nil
		}
	}

	preview := cleaned
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return nil, fmt.Errorf("%w: response starts with %q", ErrUnparsableResponse, preview)
}

func tryPayload(s string) ([]GeneratedCard, bool) {
	var payload flashcardPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, false
	}
	if !validCards(payload.Flashcards) {
		return nil, false
	}
	return payload.Flashcards, true
}

// extractFenced returns the body of the first ```json or ``` code fence.
func extractFenced(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	body := s[start+3:]
	if nl := strings.Index(body, "\n"); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		// Skip a language tag like "json" on the fence line.
		body = body[nl+1:]
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

func validCards(cards []GeneratedCard) bool {
	if len(cards) == 0 {
		return false
	}
	for _, card := range cards {
		if strings.TrimSpace(card.Question) == "" || strings.TrimSpace(card.Answer) == "" {
			return false
		}
	}
	return true
}
