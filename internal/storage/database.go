package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/flashdeck/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; keep the pool at one connection so an
	// in-memory database is shared too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DeckSummary is a deck plus the counts the deck list page shows.
type DeckSummary struct {
	domain.Deck
	DueCount int
}

// InsertDeck inserts a new deck.
func (db *DB) InsertDeck(deck domain.Deck) error {
	_, err := db.conn.Exec(`
		INSERT INTO decks (id, topic, num_cards, complexity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, deck.ID, deck.Topic, deck.NumCards, deck.Complexity, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.ID, err)
	}
	return nil
}

// FindDeckByID retrieves a deck by its ID. Returns nil if not found.
func (db *DB) FindDeckByID(id string) (*domain.Deck, error) {
	var d domain.Deck
	row := db.conn.QueryRow(`
		SELECT id, topic, num_cards, complexity, created_at
		FROM decks WHERE id = ?
	`, id)

	err := row.Scan(&d.ID, &d.Topic, &d.NumCards, &d.Complexity, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Deck not found
		}
		return nil, fmt.Errorf("failed to find deck %s: %w", id, err)
	}
	return &d, nil
}

// ListDecks retrieves all decks newest first, each with the number of cards
// due as of 'now' (cards with no progress row count as due).
func (db *DB) ListDecks(now time.Time) ([]DeckSummary, error) {
	rows, err := db.conn.Query(`
		SELECT d.id, d.topic, d.num_cards, d.complexity, d.created_at,
		       COALESCE(SUM(CASE
		           WHEN c.id IS NOT NULL AND (p.card_id IS NULL OR p.next_review_at <= ?)
		           THEN 1 ELSE 0
		       END), 0)
		FROM decks d
		LEFT JOIN cards c ON c.deck_id = d.id
		LEFT JOIN card_progress p ON p.card_id = c.id
		GROUP BY d.id
		ORDER BY d.created_at DESC
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []DeckSummary
	for rows.Next() {
		var s DeckSummary
		if err := rows.Scan(&s.ID, &s.Topic, &s.NumCards, &s.Complexity, &s.CreatedAt, &s.DueCount); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, s)
	}
	return decks, rows.Err()
}

// DeleteDeck removes a deck; its cards and their progress rows cascade.
func (db *DB) DeleteDeck(id string) error {
	_, err := db.conn.Exec(`DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	return nil
}

// UpdateDeckCardCount refreshes the stored card count for a deck.
func (db *DB) UpdateDeckCardCount(id string) error {
	_, err := db.conn.Exec(`
		UPDATE decks
		SET num_cards = (SELECT COUNT(*) FROM cards WHERE deck_id = ?)
		WHERE id = ?
	`, id, id)
	if err != nil {
		return fmt.Errorf("failed to update card count for deck %s: %w", id, err)
	}
	return nil
}

// InsertCard inserts a new card and returns its ID.
func (db *DB) InsertCard(card domain.Card) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO cards (deck_id, question, answer, hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, card.DeckID, card.Question, card.Answer, card.Hash, card.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for card %s: %w", card.Hash, err)
	}
	return id, nil
}

// InsertDeckWithCards creates a deck and its cards in one transaction. A
// failed card insert rolls the deck back too, so no empty deck is left
// claiming cards it does not have.
func (db *DB) InsertDeckWithCards(deck domain.Deck, cards []domain.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO decks (id, topic, num_cards, complexity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, deck.ID, deck.Topic, len(cards), deck.Complexity, deck.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.ID, err)
	}

	for _, card := range cards {
		if _, err := tx.Exec(`
			INSERT INTO cards (deck_id, question, answer, hash, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, deck.ID, card.Question, card.Answer, card.Hash, card.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deck %s: %w", deck.ID, err)
	}
	return nil
}

// FindCardByID retrieves a card by its ID. Returns nil if not found.
func (db *DB) FindCardByID(id int64) (*domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT id, deck_id, question, answer, hash, times_reviewed, last_reviewed_at,
		       explanation_eli5, explanation_eli10, mnemonic, created_at
		FROM cards WHERE id = ?
	`, id)

	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %d: %w", id, err)
	}
	return card, nil
}

// FindCardByHash retrieves a card in a deck by its content hash.
// Returns nil if not found.
func (db *DB) FindCardByHash(deckID, hash string) (*domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT id, deck_id, question, answer, hash, times_reviewed, last_reviewed_at,
		       explanation_eli5, explanation_eli10, mnemonic, created_at
		FROM cards WHERE deck_id = ? AND hash = ?
	`, deckID, hash)

	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s in deck %s: %w", hash, deckID, err)
	}
	return card, nil
}

// ListCards retrieves all cards in a deck in insertion order.
func (db *DB) ListCards(deckID string) ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, deck_id, question, answer, hash, times_reviewed, last_reviewed_at,
		       explanation_eli5, explanation_eli10, mnemonic, created_at
		FROM cards WHERE deck_id = ?
		ORDER BY id
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for deck %s: %w", deckID, err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// DeleteCardByID removes a card; its progress row cascades.
func (db *DB) DeleteCardByID(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

// TouchReviewStats bumps the card's review counter when its answer is shown.
func (db *DB) TouchReviewStats(cardID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE cards
		SET times_reviewed = times_reviewed + 1, last_reviewed_at = ?
		WHERE id = ?
	`, now, cardID)
	if err != nil {
		return fmt.Errorf("failed to update review stats for card %d: %w", cardID, err)
	}
	return nil
}

// SaveExplanation caches a generated ELI5 or ELI10 explanation on the card.
func (db *DB) SaveExplanation(cardID int64, level int, text string) error {
	column := "explanation_eli5"
	if level == 10 {
		column = "explanation_eli10"
	}
	_, err := db.conn.Exec(`UPDATE cards SET `+column+` = ? WHERE id = ?`, text, cardID)
	if err != nil {
		return fmt.Errorf("failed to save explanation for card %d: %w", cardID, err)
	}
	return nil
}

// SaveMnemonic caches a generated mnemonic on the card.
func (db *DB) SaveMnemonic(cardID int64, text string) error {
	_, err := db.conn.Exec(`UPDATE cards SET mnemonic = ? WHERE id = ?`, text, cardID)
	if err != nil {
		return fmt.Errorf("failed to save mnemonic for card %d: %w", cardID, err)
	}
	return nil
}

// FindProgress retrieves the spaced-repetition state of a card.
// Returns nil if the card has never been reviewed.
func (db *DB) FindProgress(cardID int64) (*domain.CardProgress, error) {
	var p domain.CardProgress
	row := db.conn.QueryRow(`
		SELECT card_id, ease_factor, interval_days, repetitions, next_review_at, last_reviewed_at
		FROM card_progress WHERE card_id = ?
	`, cardID)

	err := row.Scan(&p.CardID, &p.EaseFactor, &p.IntervalDays, &p.Repetitions, &p.NextReviewAt, &p.LastReviewedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Never reviewed
		}
		return nil, fmt.Errorf("failed to find progress for card %d: %w", cardID, err)
	}
	return &p, nil
}

// UpsertProgress replaces-or-inserts the single progress row for a card.
// Last write wins; no history is kept. Times are stored in UTC because the
// due queries compare serialized timestamp text, which is only ordered
// correctly within a single offset.
func (db *DB) UpsertProgress(p domain.CardProgress) error {
	_, err := db.conn.Exec(`
		INSERT INTO card_progress (card_id, ease_factor, interval_days, repetitions, next_review_at, last_reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			next_review_at = excluded.next_review_at,
			last_reviewed_at = excluded.last_reviewed_at
	`, p.CardID, p.EaseFactor, p.IntervalDays, p.Repetitions, p.NextReviewAt.UTC(), p.LastReviewedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert progress for card %d: %w", p.CardID, err)
	}
	return nil
}

// DueCard pairs a card with its progress. Progress is nil for a card that
// has never been reviewed.
type DueCard struct {
	Card     domain.Card
	Progress *domain.CardProgress
}

// DueCards retrieves every card in a deck that is due as of 'now': cards with
// no progress row (new) first, then reviewed cards ascending by due time, so
// a full pass surfaces fresh material before the most overdue backlog.
func (db *DB) DueCards(deckID string, now time.Time) ([]DueCard, error) {
	rows, err := db.conn.Query(`
		SELECT c.id, c.deck_id, c.question, c.answer, c.hash, c.times_reviewed, c.last_reviewed_at,
		       c.explanation_eli5, c.explanation_eli10, c.mnemonic, c.created_at,
		       p.card_id, p.ease_factor, p.interval_days, p.repetitions, p.next_review_at, p.last_reviewed_at
		FROM cards c
		LEFT JOIN card_progress p ON p.card_id = c.id
		WHERE c.deck_id = ? AND (p.card_id IS NULL OR p.next_review_at <= ?)
		ORDER BY (p.card_id IS NULL) DESC, p.next_review_at ASC, c.id ASC
	`, deckID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var due []DueCard
	for rows.Next() {
		var (
			d              DueCard
			lastReviewed   sql.NullTime
			eli5, eli10    sql.NullString
			mnemonic       sql.NullString
			progressID     sql.NullInt64
			ease           sql.NullFloat64
			interval, reps sql.NullInt64
			nextAt, lastAt sql.NullTime
		)
		if err := rows.Scan(
			&d.Card.ID, &d.Card.DeckID, &d.Card.Question, &d.Card.Answer, &d.Card.Hash,
			&d.Card.TimesReviewed, &lastReviewed, &eli5, &eli10, &mnemonic, &d.Card.CreatedAt,
			&progressID, &ease, &interval, &reps, &nextAt, &lastAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan due card row for deck %s: %w", deckID, err)
		}
		d.Card.LastReviewedAt = lastReviewed.Time
		d.Card.ExplanationELI5 = eli5.String
		d.Card.ExplanationELI10 = eli10.String
		d.Card.Mnemonic = mnemonic.String
		if progressID.Valid {
			d.Progress = &domain.CardProgress{
				CardID:         progressID.Int64,
				EaseFactor:     ease.Float64,
				IntervalDays:   int(interval.Int64),
				Repetitions:    int(reps.Int64),
				NextReviewAt:   nextAt.Time,
				LastReviewedAt: lastAt.Time,
			}
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// Source represents a markdown card source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	DeckID      string
	LastScanned sql.NullTime
}

// InsertSource records a new card source feeding the given deck.
func (db *DB) InsertSource(path, sourceType, deckID string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type, deck_id)
		VALUES (?, ?, ?)
	`, path, sourceType, deckID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path. Returns nil if not found.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRow(`
		SELECT id, path, type, deck_id, last_scanned
		FROM sources WHERE path = ?
	`, path)

	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.DeckID, &s.LastScanned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, type, deck_id, last_scanned
		FROM sources
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.DeckID, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(sourceID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, now, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source and the deck it feeds.
func (db *DB) DeleteSource(id int64) error {
	var deckID string
	err := db.conn.QueryRow(`SELECT deck_id FROM sources WHERE id = ?`, id).Scan(&deckID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("failed to find source %d: %w", id, err)
	}
	// Deleting the deck cascades to the source row and the cards.
	if err := db.DeleteDeck(deckID); err != nil {
		return fmt.Errorf("failed to delete deck for source %d: %w", id, err)
	}
	return nil
}

// Spending is the cumulative AI spend ledger.
type Spending struct {
	TotalSpent   float64
	InputTokens  int64
	OutputTokens int64
	APICalls     int64
}

// GetSpending retrieves the spend ledger, creating the row on first use.
func (db *DB) GetSpending() (Spending, error) {
	var s Spending
	row := db.conn.QueryRow(`
		SELECT total_spent, input_tokens, output_tokens, api_calls
		FROM spending WHERE id = 1
	`)
	err := row.Scan(&s.TotalSpent, &s.InputTokens, &s.OutputTokens, &s.APICalls)
	if err == sql.ErrNoRows {
		if _, err := db.conn.Exec(`INSERT INTO spending (id) VALUES (1)`); err != nil {
			return Spending{}, fmt.Errorf("failed to initialize spending ledger: %w", err)
		}
		return Spending{}, nil
	}
	if err != nil {
		return Spending{}, fmt.Errorf("failed to get spending ledger: %w", err)
	}
	return s, nil
}

// AddSpending accumulates the cost and token usage of one API call.
func (db *DB) AddSpending(cost float64, inputTokens, outputTokens int64) error {
	if _, err := db.GetSpending(); err != nil {
		return err
	}
	_, err := db.conn.Exec(`
		UPDATE spending
		SET total_spent = total_spent + ?,
		    input_tokens = input_tokens + ?,
		    output_tokens = output_tokens + ?,
		    api_calls = api_calls + 1
		WHERE id = 1
	`, cost, inputTokens, outputTokens)
	if err != nil {
		return fmt.Errorf("failed to add spending: %w", err)
	}
	return nil
}

// ResetSpending zeroes the spend ledger.
func (db *DB) ResetSpending() error {
	_, err := db.conn.Exec(`
		UPDATE spending
		SET total_spent = 0, input_tokens = 0, output_tokens = 0, api_calls = 0
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to reset spending: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (*domain.Card, error) {
	var (
		c            domain.Card
		lastReviewed sql.NullTime
		eli5, eli10  sql.NullString
		mnemonic     sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.DeckID, &c.Question, &c.Answer, &c.Hash,
		&c.TimesReviewed, &lastReviewed, &eli5, &eli10, &mnemonic, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.LastReviewedAt = lastReviewed.Time
	c.ExplanationELI5 = eli5.String
	c.ExplanationELI10 = eli10.String
	c.Mnemonic = mnemonic.String
	return &c, nil
}
