package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/flashdeck/internal/domain"
)

// Rating is the user's assessment of how well a card was recalled.
type Rating string

const (
	Again Rating = "again"
	Hard  Rating = "hard"
	Good  Rating = "good"
	Easy  Rating = "easy"
)

// ErrInvalidRating is returned when a rating is not one of the four tokens.
// Check with errors.Is.
var ErrInvalidRating = errors.New("srs: invalid rating")

// Ease factor bounds and the default for a card that has never been rated.
const (
	MinEase     = 1.3
	MaxEase     = 3.0
	DefaultEase = 2.5
)

// againDelay is how soon a lapsed card becomes due again. It deliberately
// falls inside the current study session rather than days away.
const againDelay = time.Minute

// Valid reports whether r is one of the four accepted rating tokens.
func (r Rating) Valid() bool {
	switch r {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

// ParseRating converts a raw token into a Rating.
func ParseRating(s string) (Rating, error) {
	r := Rating(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

// Ratings lists the four ratings in ascending order of confidence.
func Ratings() []Rating {
	return []Rating{Again, Hard, Good, Easy}
}

// NewProgress returns the state of a card that has never been reviewed:
// always due, default ease, zero interval and streak.
func NewProgress(cardID int64) domain.CardProgress {
	return domain.CardProgress{
		CardID:       cardID,
		EaseFactor:   DefaultEase,
		IntervalDays: 0,
		Repetitions:  0,
	}
}

// Apply computes the next progress state for a card given the user's rating.
// prev == nil means the card has never been rated and starts from the
// NewProgress defaults. The result is derived only from prev, rating and now;
// nothing is read from the environment and nothing is persisted.
//
// "again" is a lapse: the success streak and interval reset to zero, ease is
// penalised, and the card comes due one minute from now. The other three
// ratings grow the interval, gated on how many consecutive successes the card
// already had so that growth never starts from a sub-day base.
func Apply(prev *domain.CardProgress, rating Rating, now time.Time) (domain.CardProgress, error) {
	if !rating.Valid() {
		return domain.CardProgress{}, fmt.Errorf("%w: %q", ErrInvalidRating, rating)
	}

	var cur domain.CardProgress
	if prev != nil {
		cur = *prev
	} else {
		cur = NewProgress(0)
	}

	next := cur
	next.LastReviewedAt = now

	switch rating {
	case Again:
		next.Repetitions = 0
		next.IntervalDays = 0
		next.EaseFactor = clampEase(cur.EaseFactor - 0.2)
		next.NextReviewAt = now.Add(againDelay)
		return next, nil

	case Hard:
		next.Repetitions = cur.Repetitions + 1
		if cur.IntervalDays == 0 {
			next.IntervalDays = 1
		} else {
			next.IntervalDays = hardInterval(cur.IntervalDays)
		}
		next.EaseFactor = clampEase(cur.EaseFactor - 0.15)

	case Good:
		next.Repetitions = cur.Repetitions + 1
		switch cur.Repetitions {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(float64(cur.IntervalDays) * cur.EaseFactor)
		}

	case Easy:
		next.Repetitions = cur.Repetitions + 1
		switch cur.Repetitions {
		case 0:
			next.IntervalDays = 4
		case 1:
			next.IntervalDays = 10
		default:
			next.IntervalDays = int(float64(cur.IntervalDays) * cur.EaseFactor * 1.3)
		}
		next.EaseFactor = clampEase(cur.EaseFactor + 0.15)
	}

	next.NextReviewAt = now.AddDate(0, 0, next.IntervalDays)
	return next, nil
}

// Preview computes, for each of the four ratings, the interval in days that
// Apply would produce for the given state. It is read-only: prev is never
// mutated and nothing is persisted. A nil prev or a zero success streak uses
// the fixed first-exposure intervals regardless of stored ease.
func Preview(prev *domain.CardProgress) map[Rating]int {
	if prev == nil || prev.Repetitions == 0 {
		return map[Rating]int{Again: 0, Hard: 1, Good: 1, Easy: 4}
	}

	hard := hardInterval(prev.IntervalDays)
	if prev.Repetitions == 1 {
		return map[Rating]int{Again: 0, Hard: hard, Good: 6, Easy: 10}
	}

	return map[Rating]int{
		Again: 0,
		Hard:  hard,
		Good:  int(float64(prev.IntervalDays) * prev.EaseFactor),
		Easy:  int(float64(prev.IntervalDays) * prev.EaseFactor * 1.3),
	}
}

// PreviewLabels renders each previewed interval as a short human string, for
// labelling the four rating buttons before the user picks one.
func PreviewLabels(prev *domain.CardProgress) map[Rating]string {
	labels := make(map[Rating]string, 4)
	for rating, days := range Preview(prev) {
		labels[rating] = FormatInterval(days)
	}
	return labels
}

// FormatInterval renders a day count for display: "<1m" for the same-session
// sentinel, then days, months and fractional years as the count grows.
func FormatInterval(days int) string {
	switch {
	case days == 0:
		return "<1m"
	case days < 30:
		return fmt.Sprintf("%dd", days)
	case days < 365:
		return fmt.Sprintf("%dmo", days/30)
	default:
		return fmt.Sprintf("%.1fy", float64(days)/365)
	}
}

// hardInterval grows an existing interval by 20%, truncating to whole days
// but never dropping below one day.
func hardInterval(days int) int {
	next := int(float64(days) * 1.2)
	if next < 1 {
		return 1
	}
	return next
}

func clampEase(ease float64) float64 {
	if ease < MinEase {
		return MinEase
	}
	if ease > MaxEase {
		return MaxEase
	}
	return ease
}
