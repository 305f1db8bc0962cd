package storage

const schema = `
-- The 'decks' table groups the flashcards generated or imported for one topic.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    num_cards INTEGER NOT NULL DEFAULT 0,
    complexity TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- The 'cards' table stores the flashcards themselves, plus the cached
-- AI-generated extras (simple explanations and mnemonics).
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    deck_id TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    hash TEXT NOT NULL,
    times_reviewed INTEGER NOT NULL DEFAULT 0,
    last_reviewed_at DATETIME,
    explanation_eli5 TEXT,
    explanation_eli10 TEXT,
    mnemonic TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE,
    UNIQUE(deck_id, hash)
);

-- One spaced-repetition state row per card, created lazily on first review.
CREATE TABLE IF NOT EXISTS card_progress (
    card_id INTEGER PRIMARY KEY,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    next_review_at DATETIME NOT NULL,
    last_reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

-- The 'sources' table tracks markdown card sources, either a local directory
-- or a git repository. Each source feeds one deck.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    deck_id TEXT NOT NULL,
    last_scanned DATETIME,

    FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
);

-- Single-row ledger of cumulative AI spend.
CREATE TABLE IF NOT EXISTS spending (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_spent REAL NOT NULL DEFAULT 0,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    api_calls INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id);
CREATE INDEX IF NOT EXISTS idx_progress_due ON card_progress(next_review_at);
`
