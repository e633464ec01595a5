package server

import (
	"net/http"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/extract"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.requireVision(w) {
		return
	}

	var req struct {
		ImageURL  string `json:"imageUrl"`
		SessionID string `json:"sessionId,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ImageURL == "" {
		s.writeError(w, common.InvalidInputError("imageUrl is required"))
		return
	}

	ticket, err := s.extract.ExtractOne(r.Context(), req.ImageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireVision(w) {
		return
	}

	var req struct {
		ImageURLs []string `json:"imageUrls"`
		SessionID string   `json:"sessionId,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.ImageURLs) == 0 {
		s.writeError(w, common.InvalidInputError("imageUrls are required"))
		return
	}

	tickets, errs := s.extract.ExtractBatch(r.Context(), req.ImageURLs)
	if tickets == nil {
		tickets = []*extract.Ticket{}
	}
	if errs == nil {
		errs = []extract.BatchError{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tickets": tickets,
		"errors":  errs,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.requireVision(w) {
		return
	}

	var req struct {
		Images []string `json:"images"`
		Prompt string   `json:"prompt,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Images) == 0 {
		s.writeError(w, common.InvalidInputError("images are required"))
		return
	}

	analysis, err := s.extract.Analyze(r.Context(), req.Images, req.Prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tickets []extract.Ticket `json:"tickets"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Tickets) == 0 {
		s.writeError(w, common.InvalidInputError("tickets are required"))
		return
	}

	data, err := s.export.TicketsXLSX(req.Tickets)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
