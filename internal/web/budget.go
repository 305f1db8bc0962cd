package web

import (
	"log/slog"
	"net/http"
)

// handleBudget renders the spending page: totals, token counts, and what is
// left under the configured limit.
func (s *Server) handleBudget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spending, remaining, err := s.budget.Details()
		if err != nil {
			slog.Error("reading spending", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.render(w, "budget", map[string]interface{}{
			"Spending":  spending,
			"Remaining": remaining,
			"Limit":     s.budget.Limit(),
		})
	}
}

// handleBudgetReset zeroes the spending ledger.
func (s *Server) handleBudgetReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.budget.Reset(); err != nil {
			slog.Error("resetting spending", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/budget", http.StatusSeeOther)
	}
}
