package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/agenthub/internal/history"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/roster"
)

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"agents": s.roster.List()})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	p, err := s.roster.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondRosterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	created, err := s.roster.Create(r.Context(), p)
	if err != nil {
		respondRosterError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	updated, err := s.roster.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondRosterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.roster.Delete(r.Context(), id); err != nil {
		respondRosterError(w, err)
		return
	}
	if s.history != nil {
		s.history.Clear(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgentWidget(w http.ResponseWriter, r *http.Request) {
	p, err := s.roster.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondRosterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"agent_id": p.ID,
		"snippet":  persona.WidgetSnippet(p),
	})
}

func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.roster.Get(id); err != nil {
		respondRosterError(w, err)
		return
	}
	entries := []history.Entry{}
	if s.history != nil {
		entries = append(entries, s.history.Entries(id)...)
	}
	respondJSON(w, http.StatusOK, map[string]any{"agent_id": id, "entries": entries})
}

func respondRosterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		respondError(w, http.StatusNotFound, "agent_not_found", err.Error())
	case errors.Is(err, roster.ErrExists):
		respondError(w, http.StatusConflict, "agent_exists", err.Error())
	case errors.Is(err, persona.ErrInvalid):
		respondError(w, http.StatusBadRequest, "invalid_agent", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "roster_error", err.Error())
	}
}
