package budget

import (
	"errors"
	"fmt"

	"github.com/example/flashdeck/internal/storage"
)

// ErrLimitReached is returned when the cumulative spend has hit the
// configured limit. Check with errors.Is.
var ErrLimitReached = errors.New("budget: spending limit reached")

// Default per-million-token rates for the configured model.
const (
	DefaultInputRate  = 3.00
	DefaultOutputRate = 15.00
)

// Store is the slice of the storage layer the tracker needs.
type Store interface {
	GetSpending() (storage.Spending, error)
	AddSpending(cost float64, inputTokens, outputTokens int64) error
	ResetSpending() error
}

// Tracker accumulates AI spend against a limit. Every generation call checks
// Allow first and Records its token usage after; the limit is a safety net
// against runaway generation, not an exact cap.
type Tracker struct {
	store      Store
	limit      float64
	inputRate  float64 // dollars per million input tokens
	outputRate float64 // dollars per million output tokens
}

// New creates a tracker with the default token rates.
func New(store Store, limit float64) *Tracker {
	return &Tracker{
		store:      store,
		limit:      limit,
		inputRate:  DefaultInputRate,
		outputRate: DefaultOutputRate,
	}
}

// Limit returns the configured spending limit in dollars.
func (t *Tracker) Limit() float64 {
	return t.limit
}

// CostOf computes the dollar cost of one call's token usage.
func (t *Tracker) CostOf(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1e6*t.inputRate + float64(outputTokens)/1e6*t.outputRate
}

// Allow reports whether another AI call may be made. A zero limit disables
// the check.
func (t *Tracker) Allow() error {
	if t.limit <= 0 {
		return nil
	}
	spending, err := t.store.GetSpending()
	if err != nil {
		return fmt.Errorf("reading spend ledger: %w", err)
	}
	if spending.TotalSpent >= t.limit {
		return fmt.Errorf("%w: spent $%.2f of $%.2f", ErrLimitReached, spending.TotalSpent, t.limit)
	}
	return nil
}

// Record adds one call's token usage to the ledger and returns its cost.
func (t *Tracker) Record(inputTokens, outputTokens int64) (float64, error) {
	cost := t.CostOf(inputTokens, outputTokens)
	if err := t.store.AddSpending(cost, inputTokens, outputTokens); err != nil {
		return 0, fmt.Errorf("recording spend: %w", err)
	}
	return cost, nil
}

// Details returns the ledger totals and the remaining budget.
func (t *Tracker) Details() (storage.Spending, float64, error) {
	spending, err := t.store.GetSpending()
	if err != nil {
		return storage.Spending{}, 0, fmt.Errorf("reading spend ledger: %w", err)
	}
	remaining := t.limit - spending.TotalSpent
	if remaining < 0 {
		remaining = 0
	}
	return spending, remaining, nil
}

// Reset zeroes the ledger.
func (t *Tracker) Reset() error {
	return t.store.ResetSpending()
}
