// Package server exposes the ingestion/extraction pipeline as a JSON HTTP
// API under /api, plus read-only static serving of stored files.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/export"
	"github.com/quarryops/ticketscan/internal/extract"
	"github.com/quarryops/ticketscan/internal/ingest"
	"github.com/quarryops/ticketscan/internal/llm"
	"github.com/quarryops/ticketscan/internal/orient"
	"github.com/quarryops/ticketscan/internal/pdf"
	"github.com/quarryops/ticketscan/internal/session"
)

type Server struct {
	cfg      *common.Config
	store    *session.Store
	ingest   *ingest.Service
	orient   *orient.Service
	extract  *extract.Service
	export   *export.Service
	splitter *pdf.Splitter
	vision   llm.VisionClient
	logger   *slog.Logger
	router   chi.Router
}

func New(
	cfg *common.Config,
	store *session.Store,
	ingestSvc *ingest.Service,
	orientSvc *orient.Service,
	extractSvc *extract.Service,
	exportSvc *export.Service,
	splitter *pdf.Splitter,
	vision llm.VisionClient,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		ingest:   ingestSvc,
		orient:   orientSvc,
		extract:  extractSvc,
		export:   exportSvc,
		splitter: splitter,
		vision:   vision,
		logger:   logger,
	}
	s.router = s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)

		r.Post("/sessions/{id}/upload", s.handleUpload)
		r.Post("/sessions/{id}/converted", s.handleConverted)
		r.Post("/sessions/{id}/split-pdf", s.handleSplitPDF)
		r.Post("/sessions/{id}/orient", s.handleOrient)
		r.Post("/sessions/{id}/orient-all", s.handleOrientAll)

		r.Post("/extract", s.handleExtract)
		r.Post("/extract-batch", s.handleExtractBatch)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/export-xlsx", s.handleExportXLSX)
	})

	// Stored files are served read-only under their logical URLs.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.store.Root())))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireVision guards endpoints that need the model: a missing API key is a
// configuration error, not a crash.
func (s *Server) requireVision(w http.ResponseWriter) bool {
	if s.vision == nil || !s.vision.Configured() {
		s.writeError(w, common.ConfigurationError("vision model API key is not configured"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("http.encode_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.InvalidInputError("invalid JSON body: " + err.Error())
	}
	return nil
}
