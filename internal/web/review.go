package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/flashdeck/internal/budget"
	"github.com/example/flashdeck/internal/review"
	"github.com/example/flashdeck/internal/srs"
	"github.com/example/flashdeck/internal/storage"
)

// ratingLabels carries the preview interval per rating button.
type ratingLabels struct {
	Again string
	Hard  string
	Good  string
	Easy  string
}

// cardView is the template payload for both faces of a card.
type cardView struct {
	DeckID   string
	Card     storage.DueCard
	Position int
	Total    int
	Labels   ratingLabels
}

func toRatingLabels(labels map[srs.Rating]string) ratingLabels {
	return ratingLabels{
		Again: labels[srs.Again],
		Hard:  labels[srs.Hard],
		Good:  labels[srs.Good],
		Easy:  labels[srs.Easy],
	}
}

// handleStartReview begins (or restarts) a session over a deck's due cards.
// Routed under /review/{deckID}.
func (s *Server) handleStartReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := strings.TrimPrefix(r.URL.Path, "/review/")
		if deckID == "" {
			http.Error(w, "Missing deck id", http.StatusBadRequest)
			return
		}
		deck, err := s.db.FindDeckByID(deckID)
		if err != nil {
			slog.Error("finding deck", "deck", deckID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if deck == nil {
			http.NotFound(w, r)
			return
		}

		// A reload mid-session resumes the existing queue; a fresh session
		// only starts when there is none or the last one finished.
		session, ok := s.sessionFor(deckID)
		if !ok || session.Done() {
			session, err = review.Start(s.db, deckID, s.now())
			if err != nil {
				slog.Error("starting review", "deck", deckID, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			s.mu.Lock()
			s.reviews[deckID] = session
			s.mu.Unlock()
		}

		s.render(w, "review", map[string]interface{}{
			"Deck": deck,
			"Done": session.Done(),
		})
	}
}

// handleCard serves the question side of the session's current card.
// Routed under /card/{deckID}; the review page loads it on entry.
func (s *Server) handleCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := strings.TrimPrefix(r.URL.Path, "/card/")
		session, ok := s.sessionFor(deckID)
		if !ok {
			http.Error(w, "No active review session", http.StatusBadRequest)
			return
		}
		s.renderCurrentCard(w, session)
	}
}

// renderCurrentCard renders the question side of the session's current card,
// or the session summary once the queue is exhausted.
func (s *Server) renderCurrentCard(w http.ResponseWriter, session *review.Session) {
	current, ok := session.Current()
	if !ok {
		s.render(w, "session_done", map[string]interface{}{
			"DeckID": session.DeckID(),
			"Stats":  session.Stats(),
		})
		return
	}
	pos, total := session.Position()
	s.render(w, "card_front", cardView{
		DeckID:   session.DeckID(),
		Card:     current,
		Position: pos,
		Total:    total,
	})
}

// handleShowAnswer reveals the answer side with the interval each rating
// would earn. Routed under /answer/{deckID}.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := strings.TrimPrefix(r.URL.Path, "/answer/")
		session, ok := s.sessionFor(deckID)
		if !ok {
			http.Error(w, "No active review session", http.StatusBadRequest)
			return
		}
		current, ok := session.Current()
		if !ok {
			http.Error(w, "No card to reveal", http.StatusBadRequest)
			return
		}
		if err := s.db.TouchReviewStats(current.Card.ID, s.now()); err != nil {
			slog.Error("recording card view", "card", current.Card.ID, "error", err)
		}
		pos, total := session.Position()
		s.render(w, "card_back", cardView{
			DeckID:   deckID,
			Card:     current,
			Position: pos,
			Total:    total,
			Labels:   toRatingLabels(session.PreviewLabels()),
		})
	}
}

// handleRate applies a rating to the current card and serves the next front.
// Routed under /rate/{deckID}, rating in the form body.
func (s *Server) handleRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		deckID := strings.TrimPrefix(r.URL.Path, "/rate/")
		session, ok := s.sessionFor(deckID)
		if !ok {
			http.Error(w, "No active review session", http.StatusBadRequest)
			return
		}

		rating, err := srs.ParseRating(r.PostFormValue("rating"))
		if err != nil {
			http.Error(w, "Invalid rating", http.StatusBadRequest)
			return
		}
		if err := session.Rate(rating, s.now()); err != nil {
			if errors.Is(err, review.ErrNoCurrentCard) {
				http.Error(w, "Session already finished", http.StatusBadRequest)
				return
			}
			slog.Error("applying rating", "deck", deckID, "rating", rating, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.renderCurrentCard(w, session)
	}
}

// handleExplain serves a cached explanation for a card, generating and
// caching one on first request. Routed under /explain/{cardID}?level=5|10.
func (s *Server) handleExplain() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/explain/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid card id", http.StatusBadRequest)
			return
		}
		level, err := strconv.Atoi(r.URL.Query().Get("level"))
		if err != nil || (level != 5 && level != 10) {
			http.Error(w, "Invalid explanation level", http.StatusBadRequest)
			return
		}

		card, err := s.db.FindCardByID(cardID)
		if err != nil {
			slog.Error("finding card", "card", cardID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if card == nil {
			http.NotFound(w, r)
			return
		}

		cached := card.ExplanationELI5
		if level == 10 {
			cached = card.ExplanationELI10
		}
		if cached != "" {
			s.render(w, "explanation", map[string]interface{}{"Level": level, "Text": cached})
			return
		}

		if s.generator == nil {
			http.Error(w, "Generation is not configured", http.StatusServiceUnavailable)
			return
		}
		text, cost, err := s.generator.GenerateExplanation(r.Context(), card.Question, card.Answer, level)
		if err != nil {
			if errors.Is(err, budget.ErrLimitReached) {
				http.Error(w, "Spending limit reached", http.StatusPaymentRequired)
				return
			}
			slog.Error("generating explanation", "card", cardID, "level", level, "error", err)
			http.Error(w, "Generation failed", http.StatusBadGateway)
			return
		}
		slog.Info("generated explanation", "card", cardID, "level", level, "cost", cost)
		if err := s.db.SaveExplanation(cardID, level, text); err != nil {
			slog.Error("caching explanation", "card", cardID, "error", err)
		}
		s.render(w, "explanation", map[string]interface{}{"Level": level, "Text": text})
	}
}

// handleMnemonic serves a cached mnemonic for a card, generating one on first
// request. Routed under /mnemonic/{cardID}.
func (s *Server) handleMnemonic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/mnemonic/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid card id", http.StatusBadRequest)
			return
		}

		card, err := s.db.FindCardByID(cardID)
		if err != nil {
			slog.Error("finding card", "card", cardID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if card == nil {
			http.NotFound(w, r)
			return
		}
		if card.Mnemonic != "" {
			s.render(w, "mnemonic", map[string]interface{}{"Text": card.Mnemonic})
			return
		}

		if s.generator == nil {
			http.Error(w, "Generation is not configured", http.StatusServiceUnavailable)
			return
		}
		text, cost, err := s.generator.GenerateMnemonic(r.Context(), card.Question, card.Answer)
		if err != nil {
			if errors.Is(err, budget.ErrLimitReached) {
				http.Error(w, "Spending limit reached", http.StatusPaymentRequired)
				return
			}
			slog.Error("generating mnemonic", "card", cardID, "error", err)
			http.Error(w, "Generation failed", http.StatusBadGateway)
			return
		}
		slog.Info("generated mnemonic", "card", cardID, "cost", cost)
		if err := s.db.SaveMnemonic(cardID, text); err != nil {
			slog.Error("caching mnemonic", "card", cardID, "error", err)
		}
		s.render(w, "mnemonic", map[string]interface{}{"Text": text})
	}
}

func (s *Server) sessionFor(deckID string) (*review.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.reviews[deckID]
	return session, ok
}
