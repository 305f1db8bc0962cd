package ai

import (
	"errors"
	"testing"
)

func TestParseFlashcards(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantCards int
		wantQ     string
	}{
		{
			name:      "clean JSON object",
			input:     `{"flashcards": [{"question": "What is Go?", "answer": "A language."}]}`,
			wantCards: 1,
			wantQ:     "What is Go?",
		},
		{
			name: "fenced json block",
			input: "Here are your flashcards:\n```json\n" +
				`{"flashcards": [{"question": "Q1", "answer": "A1"}, {"question": "Q2", "answer": "A2"}]}` +
				"\n```\nLet me know if you need more.",
			wantCards: 2,
			wantQ:     "Q1",
		},
		{
			name: "fence without language tag",
			input: "```\n" +
				`{"flashcards": [{"question": "Q", "answer": "A"}]}` +
				"\n```",
			wantCards: 1,
			wantQ:     "Q",
		},
		{
			name:      "object buried in prose",
			input:     `Sure! {"flashcards": [{"question": "Q", "answer": "A"}]} Hope that helps.`,
			wantCards: 1,
			wantQ:     "Q",
		},
		{
			name:      "bare array",
			input:     `[{"question": "Q", "answer": "A"}]`,
			wantCards: 1,
			wantQ:     "Q",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := parseFlashcards(tc.input)
			if err != nil {
				t.Fatalf("parseFlashcards() returned an unexpected error: %v", err)
			}
			if len(cards) != tc.wantCards {
				t.Fatalf("Expected %d cards, but got %d", tc.wantCards, len(cards))
			}
			if cards[0].Question != tc.wantQ {
				t.Errorf("Expected first question %q, but got %q", tc.wantQ, cards[0].Question)
			}
		})
	}
}

func TestParseFlashcardsFailures(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "no JSON at all", input: "I could not generate flashcards for this topic."},
		{name: "empty list", input: `{"flashcards": []}`},
		{name: "blank fields", input: `{"flashcards": [{"question": "", "answer": "A"}]}`},
		{name: "malformed JSON", input: `{"flashcards": [{"question": "Q", "answer"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseFlashcards(tc.input); !errors.Is(err, ErrUnparsableResponse) {
				t.Errorf("Expected ErrUnparsableResponse, but got %v", err)
			}
		})
	}
}
