package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quarryops/ticketscan/internal/session"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.store.Create()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []session.Summary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	details, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if details.Originals == nil {
		details.Originals = []session.StoredFile{}
	}
	if details.Extracted == nil {
		details.Extracted = []session.StoredFile{}
	}
	if details.Converted == nil {
		details.Converted = []session.StoredFile{}
	}
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
