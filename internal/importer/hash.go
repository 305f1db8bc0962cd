package importer

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them, so formatting-only edits do not change a card's
// identity.
func Normalize(card ParsedCard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	q := normalizePart(card.Question)
	a := normalizePart(card.Answer)
	c := normalizePart(card.Context)

	// Joined with a newline so fields stay separated and "question"+"answer"
	// cannot collide with "questionanswer".
	return strings.Join([]string{q, a, c}, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string. It is the
// card's identity for import reconciliation and dedupe.
func Hash(card ParsedCard) string {
	normalized := Normalize(card)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}
