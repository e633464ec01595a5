// Package ingest turns raw uploads into stored session files.
package ingest

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/archive"
	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/session"
)

// UploadFile is one raw uploaded file as received from the client.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ConvertedImage is one client-rendered PDF page as a base64 data URL.
type ConvertedImage struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// Service classifies uploads (plain file vs ZIP), expands archives, and
// writes everything into the session store.
type Service struct {
	store  *session.Store
	logger *slog.Logger
}

func NewService(store *session.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Upload stores each file into the session. ZIPs are kept raw under
// originals/ and their image/PDF members land under extracted/ tagged with
// the archive name. Unsupported files are silently dropped: an upload where
// nothing qualified still succeeds with an empty list.
func (s *Service) Upload(sessionID string, files []UploadFile) ([]session.StoredFile, error) {
	if !s.store.Exists(sessionID) {
		return nil, common.NotFoundError("session " + sessionID)
	}

	var stored []session.StoredFile
	for _, f := range files {
		if constants.IsZipUpload(f.Name, f.ContentType) {
			got, err := s.ingestArchive(sessionID, f)
			if err != nil {
				return nil, err
			}
			stored = append(stored, got...)
			continue
		}

		mt := constants.MIMETypeForName(f.Name)
		if !constants.IsSupportedUpload(mt) {
			s.logger.Info("upload.dropped", "session_id", sessionID, "name", f.Name, "mime", mt)
			continue
		}
		sf, err := s.store.StoreFile(sessionID, session.SubdirOriginals, f.Name, f.Data, "")
		if err != nil {
			return nil, err
		}
		stored = append(stored, sf)
	}

	s.logger.Info("upload.ok", "session_id", sessionID, "received", len(files), "stored", len(stored))
	return stored, nil
}

func (s *Service) ingestArchive(sessionID string, f UploadFile) ([]session.StoredFile, error) {
	raw, err := s.store.StoreFile(sessionID, session.SubdirOriginals, f.Name, f.Data, "")
	if err != nil {
		return nil, err
	}

	entries, err := archive.Extract(f.Data)
	if err != nil {
		return nil, common.WrapError(err, "extract "+f.Name)
	}

	stored := []session.StoredFile{raw}
	for _, e := range entries {
		if !constants.IsSupportedUpload(e.MIMEType) {
			continue
		}
		sf, err := s.store.StoreFile(sessionID, session.SubdirExtracted, e.Name, e.Data, raw.Name)
		if err != nil {
			return nil, err
		}
		stored = append(stored, sf)
	}
	s.logger.Info("upload.archive.ok", "session_id", sessionID, "archive", raw.Name,
		"entries", len(entries), "kept", len(stored)-1)
	return stored, nil
}

// SaveConverted persists client-rendered page images into converted/.
// Malformed data URLs are skipped without failing the batch.
func (s *Service) SaveConverted(sessionID string, images []ConvertedImage) ([]session.StoredFile, error) {
	if !s.store.Exists(sessionID) {
		return nil, common.NotFoundError("session " + sessionID)
	}

	var stored []session.StoredFile
	for _, img := range images {
		data, _, err := ParseDataURL(img.DataURL)
		if err != nil {
			s.logger.Warn("converted.skipped", "session_id", sessionID, "name", img.Name, "error", err)
			continue
		}
		name := img.Name
		if name == "" {
			name = "page.png"
		}
		sf, err := s.store.StoreFile(sessionID, session.SubdirConverted, name, data, "")
		if err != nil {
			return nil, err
		}
		stored = append(stored, sf)
	}

	s.logger.Info("converted.ok", "session_id", sessionID, "received", len(images), "stored", len(stored))
	return stored, nil
}

// ParseDataURL decodes a data:<mime>;base64,<payload> string.
func ParseDataURL(dataURL string) (data []byte, mimeType string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", common.InvalidInputError("not a data url")
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 {
		return nil, "", common.InvalidInputError("data url has no payload")
	}
	meta := dataURL[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", common.InvalidInputError("data url is not base64")
	}
	mimeType = strings.TrimSuffix(meta, ";base64")

	data, err = base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil, "", common.InvalidInputError("decode data url: " + err.Error())
	}
	return data, mimeType, nil
}
