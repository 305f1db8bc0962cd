package importer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/flashdeck/internal/domain"
)

// Store is the slice of the storage layer reconciliation needs.
type Store interface {
	FindCardByHash(deckID, hash string) (*domain.Card, error)
	InsertCard(card domain.Card) (int64, error)
	ListCards(deckID string) ([]domain.Card, error)
	DeleteCardByID(id int64) error
	UpdateDeckCardCount(deckID string) error
}

// Result summarizes one reconciliation pass over a source directory.
type Result struct {
	Parsed  int
	Added   int
	Removed int
	Errors  []error
}

// Reconcile walks dir for markdown files, parses their cards and brings the
// deck in line with what was found: new cards are inserted, cards no longer
// present in any file are deleted (their progress cascades away with them).
// Review state of surviving cards is untouched because a card's identity is
// its content hash.
func Reconcile(store Store, deckID, dir string, now time.Time) (Result, error) {
	var result Result
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		parsed, parseErr := ParseFile(path)
		if parseErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, pc := range parsed {
			result.Parsed++
			hash := Hash(pc)
			found[hash] = true

			existing, findErr := store.FindCardByHash(deckID, hash)
			if findErr != nil {
				result.Errors = append(result.Errors, fmt.Errorf("db check for %s: %w", hash, findErr))
				continue
			}
			if existing != nil {
				continue
			}

			slog.Info("new card found, inserting", "deck", deckID, "hash", hash)
			if _, insertErr := store.InsertCard(toCard(pc, deckID, hash, now)); insertErr != nil {
				result.Errors = append(result.Errors, fmt.Errorf("db insert for %s: %w", hash, insertErr))
				continue
			}
			result.Added++
		}
		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	deckCards, err := store.ListCards(deckID)
	if err != nil {
		return result, fmt.Errorf("listing cards for deck %s: %w", deckID, err)
	}
	for _, card := range deckCards {
		if found[card.Hash] {
			continue
		}
		slog.Info("orphaned card, deleting", "deck", deckID, "hash", card.Hash)
		if err := store.DeleteCardByID(card.ID); err != nil {
			slog.Warn("failed to delete orphaned card", "hash", card.Hash, "error", err)
			continue
		}
		result.Removed++
	}

	if err := store.UpdateDeckCardCount(deckID); err != nil {
		return result, fmt.Errorf("updating card count for deck %s: %w", deckID, err)
	}

	return result, nil
}

// toCard converts a parsed card into a deck card. Context, when present,
// travels as a trailing paragraph of the answer.
func toCard(pc ParsedCard, deckID, hash string, now time.Time) domain.Card {
	answer := pc.Answer
	if pc.Context != "" {
		answer = answer + "\n\n" + pc.Context
	}
	return domain.Card{
		DeckID:    deckID,
		Question:  pc.Question,
		Answer:    answer,
		Hash:      hash,
		CreatedAt: now,
	}
}
