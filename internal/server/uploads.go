package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/ingest"
	"github.com/quarryops/ticketscan/internal/session"
)

// handleUpload accepts multipart form uploads under the "files" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(s.cfg.Storage.MaxUploadBytes); err != nil {
		s.writeError(w, common.InvalidInputError("parse multipart form: "+err.Error()))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, common.InvalidInputError("no files uploaded"))
		return
	}
	if len(headers) > s.cfg.Storage.MaxUploadFiles {
		s.writeError(w, common.InvalidInputError(
			fmt.Sprintf("too many files: %d (max %d)", len(headers), s.cfg.Storage.MaxUploadFiles)))
		return
	}

	files := make([]ingest.UploadFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, common.WrapError(err, "open upload "+h.Filename))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.writeError(w, common.WrapError(err, "read upload "+h.Filename))
			return
		}
		files = append(files, ingest.UploadFile{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	stored, err := s.ingest.Upload(sessionID, files)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if stored == nil {
		stored = []session.StoredFile{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"files": stored})
}

func (s *Server) handleConverted(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req struct {
		Images []ingest.ConvertedImage `json:"images"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Images) == 0 {
		s.writeError(w, common.InvalidInputError("images are required"))
		return
	}

	stored, err := s.ingest.SaveConverted(sessionID, req.Images)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if stored == nil {
		stored = []session.StoredFile{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"files": stored})
}

func (s *Server) handleSplitPDF(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req struct {
		FileURL string `json:"fileUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.FileURL == "" {
		s.writeError(w, common.InvalidInputError("fileUrl is required"))
		return
	}

	pageCount, files, err := s.splitter.SplitStored(sessionID, req.FileURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"pageCount": pageCount,
		"files":     files,
	})
}
