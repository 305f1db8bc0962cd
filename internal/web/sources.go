package web

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/example/flashdeck/internal/domain"
	"github.com/example/flashdeck/internal/gitsync"
)

type addSourceRequest struct {
	Path string `validate:"required,min=1,max=1000"`
}

// handleSources lists configured card sources and accepts new ones. Adding a
// source creates a deck for it and schedules it for the next sync.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.renderSources(w, "sources")
		case http.MethodPost:
			req := addSourceRequest{Path: strings.TrimSpace(r.PostFormValue("path"))}
			if err := s.validate.Struct(req); err != nil {
				http.Error(w, "Invalid source path", http.StatusBadRequest)
				return
			}
			existing, err := s.db.FindSourceByPath(req.Path)
			if err != nil {
				slog.Error("checking source", "path", req.Path, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if existing != nil {
				http.Error(w, "Source already configured", http.StatusConflict)
				return
			}

			sourceType := "local"
			topic := filepath.Base(strings.TrimSuffix(req.Path, "/"))
			if gitsync.IsGitURL(req.Path) {
				sourceType = "git"
				topic = strings.TrimSuffix(filepath.Base(req.Path), ".git")
			}

			deck := domain.Deck{
				ID:        uuid.NewString(),
				Topic:     topic,
				CreatedAt: s.now(),
			}
			if err := s.db.InsertDeck(deck); err != nil {
				slog.Error("inserting deck for source", "path", req.Path, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if _, err := s.db.InsertSource(req.Path, sourceType, deck.ID); err != nil {
				slog.Error("inserting source", "path", req.Path, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			s.renderSources(w, "source_list")
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleDeleteSource removes a source and the deck built from it. Routed
// under /sources/{id}.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/sources/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid source id", http.StatusBadRequest)
			return
		}
		if err := s.db.DeleteSource(id); err != nil {
			slog.Error("deleting source", "source", id, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.renderSources(w, "source_list")
	}
}

// handleSync runs a sync pass over every source immediately.
func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := gitsync.RunSync(s.db, s.reposDir, s.now()); err != nil {
			slog.Error("manual sync", "error", err)
			http.Error(w, "Sync failed", http.StatusInternalServerError)
			return
		}
		s.renderSources(w, "source_list")
	}
}

func (s *Server) renderSources(w http.ResponseWriter, templateName string) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		slog.Error("listing sources", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, templateName, map[string]interface{}{"Sources": sources})
}
