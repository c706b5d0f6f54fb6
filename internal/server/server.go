package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendtalk-backend/internal/assistant"
	"spendtalk-backend/internal/config"
	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/llm"
	"spendtalk-backend/internal/types"
)

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Engine   *assistant.Engine
	Expenses expense.Store
	// Transcriber is optional; without it /api/voice answers 501.
	Transcriber llm.Transcriber
}

type Server struct {
	router      *chi.Mux
	cfg         config.Config
	engine      *assistant.Engine
	expenses    expense.Store
	transcriber llm.Transcriber
}

func NewServer(cfg config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 20 * time.Second
	}

	s := &Server{
		router:      r,
		cfg:         cfg,
		engine:      deps.Engine,
		expenses:    deps.Expenses,
		transcriber: deps.Transcriber,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	// Conversation
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/voice", s.handleVoice)
	s.router.Get("/api/chat/history", s.handleHistory)
	s.router.Delete("/api/chat/session", s.handleResetSession)
	// Expenses
	s.router.Route("/api/expenses", func(r chi.Router) {
		r.Post("/", s.handleAddExpense)
		r.Get("/", s.handleListExpenses)
		r.Get("/search", s.handleSearchExpenses)
		r.Get("/summary", s.handleSummary)
		r.Patch("/{id}", s.handleUpdateExpense)
		r.Delete("/{id}", s.handleDeleteExpense)
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// storeStatus maps expense store errors onto HTTP status codes.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, expense.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, expense.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, expense.ErrUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusBadGateway
}
