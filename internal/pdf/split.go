// Package pdf splits stored PDFs into per-page documents with pdfcpu.
package pdf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/session"
)

type Splitter struct {
	store  *session.Store
	logger *slog.Logger
}

func NewSplitter(store *session.Store, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{store: store, logger: logger}
}

// SplitStored splits a stored PDF into single-page PDFs and persists them
// under the session's converted/ folder, tagged with the source file name.
// Returns the page count and the stored page files in page order.
func (s *Splitter) SplitStored(sessionID, fileURL string) (int, []session.StoredFile, error) {
	id, _, name, err := session.SplitURL(fileURL)
	if err != nil {
		return 0, nil, err
	}
	if id != sessionID {
		return 0, nil, common.InvalidInputError("fileUrl does not belong to session " + sessionID)
	}
	if constants.MIMETypeForName(name) != constants.MIMEPDF {
		return 0, nil, common.InvalidInputError("not a PDF: " + fileURL)
	}

	path, err := s.store.ResolveURL(fileURL)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "ticketscan-split-*")
	if err != nil {
		return 0, nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pageCount, pagePaths, err := splitToPages(path, tmpDir)
	if err != nil {
		return 0, nil, err
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	stored := make([]session.StoredFile, 0, len(pagePaths))
	for i, p := range pagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, nil, fmt.Errorf("read split page: %w", err)
		}
		sf, err := s.store.StoreFile(sessionID, session.SubdirConverted,
			fmt.Sprintf("%s_page_%d.pdf", base, i+1), data, name)
		if err != nil {
			return 0, nil, err
		}
		stored = append(stored, sf)
	}

	s.logger.Info("pdf.split.ok", "session_id", sessionID, "file", name,
		"pages", pageCount, "elapsed_ms", time.Since(start).Milliseconds())
	return pageCount, stored, nil
}

// splitToPages optimizes the source (relaxed validation tolerates scanner
// output) and splits it into single-page PDFs inside outDir, returning the
// produced paths in page order.
func splitToPages(path, outDir string) (int, []string, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	optimized := filepath.Join(outDir, "source.pdf")
	if err := api.OptimizeFile(path, optimized, cfg); err != nil {
		return 0, nil, fmt.Errorf("optimize pdf: %w", err)
	}

	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return 0, nil, fmt.Errorf("count pdf pages: %w", err)
	}

	if err := api.SplitFile(optimized, outDir, 1, cfg); err != nil {
		return 0, nil, fmt.Errorf("split pdf: %w", err)
	}

	pages := make([]string, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("source_%d.pdf", i))
		if _, err := os.Stat(p); err != nil {
			return 0, nil, fmt.Errorf("split page %d missing: %w", i, err)
		}
		pages = append(pages, p)
	}
	return pageCount, pages, nil
}
