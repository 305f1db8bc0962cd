package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/flashdeck/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := ParsedCard{
		Question: "  What is HTMX? \r\n",
		Answer:   "A library for AJAX.",
		Context:  "Web Development",
	}
	expected := "what is htmx?\na library for ajax.\nweb development"

	if got := Normalize(card); got != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, got)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := ParsedCard{Question: "Q", Answer: "A", Context: "C"}
		// SHA-256 of "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"

		if got := Hash(card); got != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, got)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := ParsedCard{Question: "  what is go? ", Answer: "A programming language."}
		card2 := ParsedCard{Question: "What Is Go?", Answer: "A programming language."}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		card1 := ParsedCard{Question: "Card 1"}
		card2 := ParsedCard{Question: "Card 2"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected hashes for different cards to be different")
		}
	})
}

// fakeStore is an in-memory Store for reconciliation tests.
type fakeStore struct {
	nextID int64
	cards  map[int64]domain.Card
}

func newFakeStore() *fakeStore {
	return &fakeStore{cards: make(map[int64]domain.Card)}
}

func (s *fakeStore) FindCardByHash(deckID, hash string) (*domain.Card, error) {
	for _, c := range s.cards {
		if c.DeckID == deckID && c.Hash == hash {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertCard(card domain.Card) (int64, error) {
	s.nextID++
	card.ID = s.nextID
	s.cards[card.ID] = card
	return card.ID, nil
}

func (s *fakeStore) ListCards(deckID string) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range s.cards {
		if c.DeckID == deckID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteCardByID(id int64) error {
	delete(s.cards, id)
	return nil
}

func (s *fakeStore) UpdateDeckCardCount(deckID string) error {
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestReconcile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cards.md", "Q: One\nA: First answer\n---\nQ: Two\nA: Second answer\n")
	writeFile(t, dir, "notes.txt", "Q: Not markdown\nA: Ignored\n")

	store := newFakeStore()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	result, err := Reconcile(store, "d1", dir, now)
	if err != nil {
		t.Fatalf("Reconcile() returned an unexpected error: %v", err)
	}
	if result.Parsed != 2 || result.Added != 2 || result.Removed != 0 {
		t.Fatalf("Expected parsed=2 added=2 removed=0, but got %+v", result)
	}

	// A second pass is a no-op: the same content hashes to the same cards.
	result, err = Reconcile(store, "d1", dir, now)
	if err != nil {
		t.Fatalf("Reconcile() returned an unexpected error: %v", err)
	}
	if result.Added != 0 || result.Removed != 0 {
		t.Fatalf("Expected a no-op second pass, but got %+v", result)
	}

	// Removing a card from the file orphans it in the deck.
	writeFile(t, dir, "cards.md", "Q: One\nA: First answer\n")
	result, err = Reconcile(store, "d1", dir, now)
	if err != nil {
		t.Fatalf("Reconcile() returned an unexpected error: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Expected 1 orphaned card removed, but got %+v", result)
	}

	remaining, _ := store.ListCards("d1")
	if len(remaining) != 1 {
		t.Fatalf("Expected 1 card left in the deck, but got %d", len(remaining))
	}
	if remaining[0].Question != "One" {
		t.Errorf("Expected the surviving card to be 'One', but got %q", remaining[0].Question)
	}
}

func TestReconcileContextJoinsAnswer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cards.md", "Q: What is Go?\nA: A language.\nC: Programming\n")

	store := newFakeStore()
	if _, err := Reconcile(store, "d1", dir, time.Now()); err != nil {
		t.Fatalf("Reconcile() returned an unexpected error: %v", err)
	}

	cards, _ := store.ListCards("d1")
	if len(cards) != 1 {
		t.Fatalf("Expected 1 card, but got %d", len(cards))
	}
	if cards[0].Answer != "A language.\n\nProgramming" {
		t.Errorf("Expected context appended to the answer, but got %q", cards[0].Answer)
	}
}
