package storage

import (
	"testing"
	"time"

	"github.com/example/flashdeck/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestDeck(t *testing.T, db *DB, id string) {
	t.Helper()

	deck := domain.Deck{
		ID:         id,
		Topic:      "Test topic " + id,
		Complexity: domain.ComplexityBeginner,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.InsertDeck(deck); err != nil {
		t.Fatalf("insert deck: %v", err)
	}
}

func insertTestCard(t *testing.T, db *DB, deckID, question string) int64 {
	t.Helper()

	id, err := db.InsertCard(domain.Card{
		DeckID:    deckID,
		Question:  question,
		Answer:    "answer to " + question,
		Hash:      "hash-" + question,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert card: %v", err)
	}
	return id
}

func TestFindProgressMissing(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")
	cardID := insertTestCard(t, db, "d1", "q1")

	progress, err := db.FindProgress(cardID)
	if err != nil {
		t.Fatalf("FindProgress() returned an unexpected error: %v", err)
	}
	if progress != nil {
		t.Errorf("Expected nil progress for an unreviewed card, but got %+v", progress)
	}
}

func TestUpsertProgressReplacesSingleRow(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")
	cardID := insertTestCard(t, db, "d1", "q1")

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	first := domain.CardProgress{
		CardID: cardID, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1,
		NextReviewAt: now.AddDate(0, 0, 1), LastReviewedAt: now,
	}
	if err := db.UpsertProgress(first); err != nil {
		t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
	}

	second := first
	second.EaseFactor = 2.65
	second.IntervalDays = 6
	second.Repetitions = 2
	if err := db.UpsertProgress(second); err != nil {
		t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
	}

	// Read-your-own-write: the row must reflect the latest upsert.
	got, err := db.FindProgress(cardID)
	if err != nil {
		t.Fatalf("FindProgress() returned an unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a progress row after upsert, but got nil")
	}
	if got.IntervalDays != 6 || got.Repetitions != 2 {
		t.Errorf("Expected interval 6 / repetitions 2, but got %d / %d", got.IntervalDays, got.Repetitions)
	}
	if got.EaseFactor != 2.65 {
		t.Errorf("Expected ease 2.65, but got %.2f", got.EaseFactor)
	}
}

func TestDueCardsOrdering(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")

	today := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	// A: never reviewed. B: overdue since yesterday. C: due tomorrow.
	// Insert B first so the ordering cannot come from insertion order.
	cardB := insertTestCard(t, db, "d1", "B")
	cardA := insertTestCard(t, db, "d1", "A")
	cardC := insertTestCard(t, db, "d1", "C")

	for _, p := range []domain.CardProgress{
		{CardID: cardB, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1, NextReviewAt: yesterday, LastReviewedAt: yesterday.AddDate(0, 0, -1)},
		{CardID: cardC, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1, NextReviewAt: tomorrow, LastReviewedAt: today},
	} {
		if err := db.UpsertProgress(p); err != nil {
			t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
		}
	}

	due, err := db.DueCards("d1", today)
	if err != nil {
		t.Fatalf("DueCards() returned an unexpected error: %v", err)
	}

	if len(due) != 2 {
		t.Fatalf("Expected 2 due cards, but got %d", len(due))
	}
	if due[0].Card.ID != cardA {
		t.Errorf("Expected the new card first, but got card %d", due[0].Card.ID)
	}
	if due[0].Progress != nil {
		t.Errorf("Expected nil progress for the new card, but got %+v", due[0].Progress)
	}
	if due[1].Card.ID != cardB {
		t.Errorf("Expected the overdue card second, but got card %d", due[1].Card.ID)
	}
	if due[1].Progress == nil {
		t.Fatal("Expected progress for the reviewed card, but got nil")
	}
	for _, d := range due {
		if d.Card.ID == cardC {
			t.Error("Expected the card due tomorrow to be excluded")
		}
	}
}

func TestDueCardsOverdueOrder(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")

	today := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	older := insertTestCard(t, db, "d1", "older")
	newer := insertTestCard(t, db, "d1", "newer")

	for _, p := range []domain.CardProgress{
		{CardID: newer, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1, NextReviewAt: today.AddDate(0, 0, -1), LastReviewedAt: today.AddDate(0, 0, -2)},
		{CardID: older, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1, NextReviewAt: today.AddDate(0, 0, -5), LastReviewedAt: today.AddDate(0, 0, -6)},
	} {
		if err := db.UpsertProgress(p); err != nil {
			t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
		}
	}

	due, err := db.DueCards("d1", today)
	if err != nil {
		t.Fatalf("DueCards() returned an unexpected error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("Expected 2 due cards, but got %d", len(due))
	}
	if due[0].Card.ID != older || due[1].Card.ID != newer {
		t.Errorf("Expected most overdue first, but got order %d, %d", due[0].Card.ID, due[1].Card.ID)
	}
}

func TestDueCardsMixedOffsets(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")
	cardID := insertTestCard(t, db, "d1", "q1")

	// Due 2025-03-10 06:00+10:00, which is 2025-03-09 20:00 UTC. Queried with
	// a UTC now four hours later the card is overdue; the stored timestamp
	// must not be compared with its original offset.
	sydneyish := time.FixedZone("AEST", 10*60*60)
	due := time.Date(2025, time.March, 10, 6, 0, 0, 0, sydneyish)
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	if err := db.UpsertProgress(domain.CardProgress{
		CardID: cardID, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1,
		NextReviewAt: due, LastReviewedAt: due.AddDate(0, 0, -1),
	}); err != nil {
		t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
	}

	got, err := db.DueCards("d1", now)
	if err != nil {
		t.Fatalf("DueCards() returned an unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 due card across offsets, but got %d", len(got))
	}

	decks, err := db.ListDecks(now)
	if err != nil {
		t.Fatalf("ListDecks() returned an unexpected error: %v", err)
	}
	if len(decks) != 1 || decks[0].DueCount != 1 {
		t.Errorf("Expected due count 1 across offsets, but got %+v", decks)
	}
}

func TestDueCardsUnknownDeck(t *testing.T) {
	db := openTestDB(t)

	due, err := db.DueCards("no-such-deck", time.Now())
	if err != nil {
		t.Fatalf("DueCards() returned an unexpected error: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Expected no due cards for an unknown deck, but got %d", len(due))
	}
}

func TestDeleteDeckCascades(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")
	cardID := insertTestCard(t, db, "d1", "q1")

	now := time.Now().UTC()
	if err := db.UpsertProgress(domain.CardProgress{
		CardID: cardID, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1,
		NextReviewAt: now, LastReviewedAt: now,
	}); err != nil {
		t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
	}

	if err := db.DeleteDeck("d1"); err != nil {
		t.Fatalf("DeleteDeck() returned an unexpected error: %v", err)
	}

	card, err := db.FindCardByID(cardID)
	if err != nil {
		t.Fatalf("FindCardByID() returned an unexpected error: %v", err)
	}
	if card != nil {
		t.Error("Expected card to be deleted with its deck")
	}

	progress, err := db.FindProgress(cardID)
	if err != nil {
		t.Fatalf("FindProgress() returned an unexpected error: %v", err)
	}
	if progress != nil {
		t.Error("Expected progress to be deleted with its card")
	}
}

func TestInsertDeckWithCards(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	deck := domain.Deck{ID: "d1", Topic: "Atomic", Complexity: domain.ComplexityBeginner, CreatedAt: now}
	cards := []domain.Card{
		{DeckID: "d1", Question: "q1", Answer: "a1", Hash: "h1", CreatedAt: now},
		{DeckID: "d1", Question: "q2", Answer: "a2", Hash: "h2", CreatedAt: now},
	}
	if err := db.InsertDeckWithCards(deck, cards); err != nil {
		t.Fatalf("InsertDeckWithCards() returned an unexpected error: %v", err)
	}

	got, err := db.FindDeckByID("d1")
	if err != nil {
		t.Fatalf("FindDeckByID() returned an unexpected error: %v", err)
	}
	if got == nil || got.NumCards != 2 {
		t.Fatalf("Expected a deck with 2 cards, but got %+v", got)
	}
}

func TestInsertDeckWithCardsRollsBack(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	deck := domain.Deck{ID: "d1", Topic: "Atomic", Complexity: domain.ComplexityBeginner, CreatedAt: now}
	cards := []domain.Card{
		{DeckID: "d1", Question: "q1", Answer: "a1", Hash: "same", CreatedAt: now},
		{DeckID: "d1", Question: "q2", Answer: "a2", Hash: "same", CreatedAt: now},
	}
	if err := db.InsertDeckWithCards(deck, cards); err == nil {
		t.Fatal("Expected a unique-hash violation to fail the batch")
	}

	// The failed batch must not leave an empty deck behind.
	got, err := db.FindDeckByID("d1")
	if err != nil {
		t.Fatalf("FindDeckByID() returned an unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no deck after a rolled-back batch, but got %+v", got)
	}
}

func TestListDecksDueCounts(t *testing.T) {
	db := openTestDB(t)
	insertTestDeck(t, db, "d1")
	insertTestDeck(t, db, "d2")

	today := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	// d1: one new card, one card due tomorrow. d2: no cards.
	insertTestCard(t, db, "d1", "new")
	scheduled := insertTestCard(t, db, "d1", "scheduled")
	if err := db.UpsertProgress(domain.CardProgress{
		CardID: scheduled, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1,
		NextReviewAt: today.AddDate(0, 0, 1), LastReviewedAt: today,
	}); err != nil {
		t.Fatalf("UpsertProgress() returned an unexpected error: %v", err)
	}

	decks, err := db.ListDecks(today)
	if err != nil {
		t.Fatalf("ListDecks() returned an unexpected error: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("Expected 2 decks, but got %d", len(decks))
	}

	counts := make(map[string]int)
	for _, d := range decks {
		counts[d.ID] = d.DueCount
	}
	if counts["d1"] != 1 {
		t.Errorf("Expected 1 due card in d1, but got %d", counts["d1"])
	}
	if counts["d2"] != 0 {
		t.Errorf("Expected 0 due cards in d2, but got %d", counts["d2"])
	}
}

func TestSpendingLedger(t *testing.T) {
	db := openTestDB(t)

	s, err := db.GetSpending()
	if err != nil {
		t.Fatalf("GetSpending() returned an unexpected error: %v", err)
	}
	if s.TotalSpent != 0 || s.APICalls != 0 {
		t.Errorf("Expected an empty ledger, but got %+v", s)
	}

	if err := db.AddSpending(0.0123, 1000, 500); err != nil {
		t.Fatalf("AddSpending() returned an unexpected error: %v", err)
	}
	if err := db.AddSpending(0.01, 400, 200); err != nil {
		t.Fatalf("AddSpending() returned an unexpected error: %v", err)
	}

	s, err = db.GetSpending()
	if err != nil {
		t.Fatalf("GetSpending() returned an unexpected error: %v", err)
	}
	if s.APICalls != 2 {
		t.Errorf("Expected 2 API calls, but got %d", s.APICalls)
	}
	if s.InputTokens != 1400 || s.OutputTokens != 700 {
		t.Errorf("Expected 1400/700 tokens, but got %d/%d", s.InputTokens, s.OutputTokens)
	}

	if err := db.ResetSpending(); err != nil {
		t.Fatalf("ResetSpending() returned an unexpected error: %v", err)
	}
	s, err = db.GetSpending()
	if err != nil {
		t.Fatalf("GetSpending() returned an unexpected error: %v", err)
	}
	if s.TotalSpent != 0 || s.APICalls != 0 {
		t.Errorf("Expected a reset ledger, but got %+v", s)
	}
}
