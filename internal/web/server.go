package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/example/flashdeck/internal/ai"
	"github.com/example/flashdeck/internal/budget"
	"github.com/example/flashdeck/internal/review"
	"github.com/example/flashdeck/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

const sessionCookie = "flashdeck_session"

// Generator is the slice of the AI client the server needs. It is nil when
// no API key is configured, which disables generation routes.
type Generator interface {
	GenerateFlashcards(ctx context.Context, topic string, numCards int, complexity string) ([]ai.GeneratedCard, float64, error)
	GenerateExplanation(ctx context.Context, question, answer string, level int) (string, float64, error)
	GenerateMnemonic(ctx context.Context, question, answer string) (string, float64, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	generator Generator
	budget    *budget.Tracker
	router    *http.ServeMux
	templates *template.Template
	validate  *validator.Validate
	password  string
	reposDir  string
	now       func() time.Time

	mu           sync.Mutex
	authTokens   map[string]bool
	reviews      map[string]*review.Session // keyed by deck ID
}

// NewServer creates and configures a new server. generator may be nil.
func NewServer(db *storage.DB, generator Generator, tracker *budget.Tracker, password, reposDir string) *Server {
	funcs := template.FuncMap{
		"formatTime": formatTime,
	}
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	s := &Server{
		db:         db,
		generator:  generator,
		budget:     tracker,
		router:     http.NewServeMux(),
		templates:  tpl,
		validate:   validator.New(),
		password:   password,
		reposDir:   reposDir,
		now:        time.Now,
		authTokens: make(map[string]bool),
		reviews:    make(map[string]*review.Session),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	s.router.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("/login", s.handleLogin())
	s.router.HandleFunc("/logout", s.handleLogout())

	s.router.HandleFunc("/", s.gated(s.handleIndex()))
	s.router.HandleFunc("/decks", s.gated(s.handleDecks()))
	s.router.HandleFunc("/decks/", s.gated(s.handleDeck()))
	s.router.HandleFunc("/generate", s.gated(s.handleGenerate()))

	s.router.HandleFunc("/review/", s.gated(s.handleStartReview()))
	s.router.HandleFunc("/card/", s.gated(s.handleCard()))
	s.router.HandleFunc("/answer/", s.gated(s.handleShowAnswer()))
	s.router.HandleFunc("/rate/", s.gated(s.handleRate()))
	s.router.HandleFunc("/explain/", s.gated(s.handleExplain()))
	s.router.HandleFunc("/mnemonic/", s.gated(s.handleMnemonic()))

	s.router.HandleFunc("/budget", s.gated(s.handleBudget()))
	s.router.HandleFunc("/budget/reset", s.gated(s.handleBudgetReset()))

	s.router.HandleFunc("/sources", s.gated(s.handleSources()))
	s.router.HandleFunc("/sources/", s.gated(s.handleDeleteSource()))
	s.router.HandleFunc("/sync", s.gated(s.handleSync()))
}

// gated wraps a handler behind the shared-password session check. An empty
// password disables the gate entirely.
func (s *Server) gated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.password == "" || s.authenticated(r) {
			next(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func (s *Server) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authTokens[cookie.Value]
}

// handleLogin renders the password form and checks submissions.
func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.password == "" {
			http.Redirect(w, r, "/decks", http.StatusSeeOther)
			return
		}

		switch r.Method {
		case http.MethodGet:
			s.render(w, "login", nil)
		case http.MethodPost:
			supplied := r.PostFormValue("password")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.password)) != 1 {
				s.render(w, "login", map[string]interface{}{"Error": "Incorrect password"})
				return
			}
			token := uuid.NewString()
			s.mu.Lock()
			s.authTokens[token] = true
			s.mu.Unlock()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			http.Redirect(w, r, "/decks", http.StatusSeeOther)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			s.mu.Lock()
			delete(s.authTokens, cookie.Value)
			s.mu.Unlock()
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/decks", http.StatusSeeOther)
	}
}

// render executes a named template, logging instead of half-writing a
// response on failure.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering template", "template", name, "error", err)
	}
}
