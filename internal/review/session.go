package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/flashdeck/internal/domain"
	"github.com/example/flashdeck/internal/srs"
	"github.com/example/flashdeck/internal/storage"
)

// ErrNoCurrentCard is returned when a rating arrives after the due queue is
// exhausted.
var ErrNoCurrentCard = errors.New("review: no current card")

// ProgressStore is the slice of the storage layer a review session needs.
type ProgressStore interface {
	FindProgress(cardID int64) (*domain.CardProgress, error)
	UpsertProgress(p domain.CardProgress) error
	DueCards(deckID string, now time.Time) ([]storage.DueCard, error)
}

// Stats counts the ratings given during one session. It lives with the
// session, never in the scheduler.
type Stats struct {
	Again int
	Hard  int
	Good  int
	Easy  int
}

// Record bumps the counter for the given rating.
func (s *Stats) Record(rating srs.Rating) {
	switch rating {
	case srs.Again:
		s.Again++
	case srs.Hard:
		s.Hard++
	case srs.Good:
		s.Good++
	case srs.Easy:
		s.Easy++
	}
}

// Total is the number of ratings recorded this session.
func (s Stats) Total() int {
	return s.Again + s.Hard + s.Good + s.Easy
}

// Session walks a deck's due cards: question, answer, rating, next card.
// A card rated "again" is re-presented in place rather than waiting for its
// one-minute due time; the due-time mechanism only matters across sessions.
type Session struct {
	store  ProgressStore
	deckID string
	queue  []storage.DueCard
	index  int
	stats  Stats
}

// Start loads the cards due in the deck as of 'now' and begins a session.
// New cards come first, then reviewed cards most overdue first.
func Start(store ProgressStore, deckID string, now time.Time) (*Session, error) {
	queue, err := store.DueCards(deckID, now)
	if err != nil {
		return nil, fmt.Errorf("loading due cards for deck %s: %w", deckID, err)
	}
	return &Session{store: store, deckID: deckID, queue: queue}, nil
}

// DeckID returns the deck this session reviews.
func (s *Session) DeckID() string {
	return s.deckID
}

// Current returns the card being presented, or false when the queue is
// exhausted.
func (s *Session) Current() (storage.DueCard, bool) {
	if s.index >= len(s.queue) {
		return storage.DueCard{}, false
	}
	return s.queue[s.index], true
}

// Position reports the 1-based position in the queue and the queue length.
func (s *Session) Position() (current, total int) {
	pos := s.index + 1
	if pos > len(s.queue) {
		pos = len(s.queue)
	}
	return pos, len(s.queue)
}

// PreviewLabels formats the interval each rating would give the current card.
func (s *Session) PreviewLabels() map[srs.Rating]string {
	current, ok := s.Current()
	if !ok {
		return nil
	}
	return srs.PreviewLabels(current.Progress)
}

// Rate applies the rating to the current card: one read-modify-write of its
// progress row, then the queue advances. "again" holds the position so the
// card is shown once more before the session moves on.
func (s *Session) Rate(rating srs.Rating, now time.Time) error {
	if !rating.Valid() {
		return fmt.Errorf("%w: %q", srs.ErrInvalidRating, rating)
	}
	current, ok := s.Current()
	if !ok {
		return ErrNoCurrentCard
	}

	prev, err := s.store.FindProgress(current.Card.ID)
	if err != nil {
		return fmt.Errorf("reading progress for card %d: %w", current.Card.ID, err)
	}

	next, err := srs.Apply(prev, rating, now)
	if err != nil {
		return err
	}
	next.CardID = current.Card.ID

	if err := s.store.UpsertProgress(next); err != nil {
		return fmt.Errorf("saving review result for card %d: %w", current.Card.ID, err)
	}

	s.stats.Record(rating)
	s.queue[s.index].Progress = &next
	if rating != srs.Again {
		s.index++
	}
	return nil
}

// Done reports whether every due card has been rated past.
func (s *Session) Done() bool {
	return s.index >= len(s.queue)
}

// Stats returns the rating counters accumulated so far.
func (s *Session) Stats() Stats {
	return s.stats
}
