package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"spendtalk-backend/internal/expense"
)

// POST /api/expenses
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var in expense.NewExpense
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	e, err := s.expenses.Add(r.Context(), in)
	if err != nil {
		s.storeError(w, "add", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, e)
}

// GET /api/expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.List(r.Context())
	if err != nil {
		s.storeError(w, "list", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GET /api/expenses/search?title=
func (s *Server) handleSearchExpenses(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		s.writeError(w, http.StatusBadRequest, "title query parameter is required")
		return
	}
	list, err := s.expenses.Search(r.Context(), title)
	if err != nil {
		s.storeError(w, "search", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GET /api/expenses/summary?category=&from=&to=
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := expense.Filter{Keyword: q.Get("q"), Category: q.Get("category"), From: q.Get("from"), To: q.Get("to")}
	sum, err := expense.SummarizeStore(r.Context(), s.expenses, f)
	if err != nil {
		s.storeError(w, "summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

// PATCH /api/expenses/{id}
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p expense.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Empty() {
		s.writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	e, err := s.expenses.Update(r.Context(), id, p)
	if err != nil {
		s.storeError(w, "update", err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// DELETE /api/expenses/{id}
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.expenses.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete", err)
		return
	}
	s.writeJSON(w, http.StatusOK, expense.Deletion{ID: id, Deleted: true})
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	code := storeStatus(err)
	if code == http.StatusBadGateway {
		log.Printf("[expenses] %s failed: %v", op, err)
	}
	s.writeError(w, code, strings.ReplaceAll(err.Error(), "\n", ": "))
}
