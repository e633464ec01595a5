package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/orient"
)

func (s *Server) handleOrient(w http.ResponseWriter, r *http.Request) {
	if !s.requireVision(w) {
		return
	}
	sessionID := chi.URLParam(r, "id")

	var req struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ImageURL == "" {
		s.writeError(w, common.InvalidInputError("imageUrl is required"))
		return
	}

	result, err := s.orient.OrientOne(r.Context(), sessionID, req.ImageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOrientAll(w http.ResponseWriter, r *http.Request) {
	if !s.requireVision(w) {
		return
	}
	sessionID := chi.URLParam(r, "id")

	results, err := s.orient.OrientAll(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []orient.BatchItem{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
