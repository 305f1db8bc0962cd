package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/flashdeck/internal/budget"
	"github.com/example/flashdeck/internal/domain"
	"github.com/example/flashdeck/internal/importer"
)

type generateRequest struct {
	Topic      string `validate:"required,min=3,max=500"`
	NumCards   int    `validate:"required,min=1,max=50"`
	Complexity string `validate:"required,oneof=Beginner Intermediate Advanced"`
}

// handleDecks renders the deck overview with per-deck due counts.
func (s *Server) handleDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decks, err := s.db.ListDecks(s.now())
		if err != nil {
			slog.Error("listing decks", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.render(w, "decks", map[string]interface{}{
			"Decks":        decks,
			"CanGenerate":  s.generator != nil,
			"Complexities": []string{domain.ComplexityBeginner, domain.ComplexityIntermediate, domain.ComplexityAdvanced},
		})
	}
}

// handleDeck shows or deletes a single deck. Routed under /decks/{id}.
func (s *Server) handleDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := strings.TrimPrefix(r.URL.Path, "/decks/")
		if deckID == "" {
			http.Error(w, "Missing deck id", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
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
			cards, err := s.db.ListCards(deckID)
			if err != nil {
				slog.Error("listing cards", "deck", deckID, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			s.render(w, "deck", map[string]interface{}{"Deck": deck, "Cards": cards})

		case http.MethodDelete:
			if err := s.db.DeleteDeck(deckID); err != nil {
				slog.Error("deleting deck", "deck", deckID, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			s.mu.Lock()
			delete(s.reviews, deckID)
			s.mu.Unlock()
			s.renderDeckList(w)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleGenerate creates a new deck by asking the model for cards on a topic.
func (s *Server) handleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.generator == nil {
			http.Error(w, "Generation is not configured", http.StatusServiceUnavailable)
			return
		}

		numCards, _ := strconv.Atoi(r.PostFormValue("num_cards"))
		req := generateRequest{
			Topic:      strings.TrimSpace(r.PostFormValue("topic")),
			NumCards:   numCards,
			Complexity: r.PostFormValue("complexity"),
		}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, "Invalid generation request", http.StatusBadRequest)
			return
		}

		generated, cost, err := s.generator.GenerateFlashcards(r.Context(), req.Topic, req.NumCards, req.Complexity)
		if err != nil {
			if errors.Is(err, budget.ErrLimitReached) {
				http.Error(w, "Spending limit reached", http.StatusPaymentRequired)
				return
			}
			slog.Error("generating flashcards", "topic", req.Topic, "error", err)
			http.Error(w, "Generation failed", http.StatusBadGateway)
			return
		}
		slog.Info("generated deck", "topic", req.Topic, "cards", len(generated), "cost", cost)

		now := s.now()
		deck := domain.Deck{
			ID:         uuid.NewString(),
			Topic:      req.Topic,
			Complexity: req.Complexity,
			CreatedAt:  now,
		}

		// Models occasionally repeat a card; content hashes are unique per
		// deck, so collapse duplicates before the batch insert.
		seen := make(map[string]bool, len(generated))
		cards := make([]domain.Card, 0, len(generated))
		for _, g := range generated {
			hash := importer.Hash(importer.ParsedCard{Question: g.Question, Answer: g.Answer})
			if seen[hash] {
				continue
			}
			seen[hash] = true
			cards = append(cards, domain.Card{
				DeckID:    deck.ID,
				Question:  g.Question,
				Answer:    g.Answer,
				Hash:      hash,
				CreatedAt: now,
			})
		}
		if err := s.db.InsertDeckWithCards(deck, cards); err != nil {
			slog.Error("inserting generated deck", "deck", deck.ID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		s.renderDeckList(w)
	}
}

// renderDeckList re-renders the deck list fragment after a mutation.
func (s *Server) renderDeckList(w http.ResponseWriter) {
	decks, err := s.db.ListDecks(s.now())
	if err != nil {
		slog.Error("listing decks", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "deck_list", map[string]interface{}{"Decks": decks})
}

// formatTime is a template helper shared by several fragments.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
