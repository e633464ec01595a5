// Package orient detects a scan's rotation via the vision model and undoes
// it with a deterministic pixel rotation.
package orient

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/llm"
	"github.com/quarryops/ticketscan/internal/session"
)

// orientedMarker tags corrected files; orient-all skips names containing it
// so already-corrected files are never re-processed.
const orientedMarker = "_oriented"

var reAngle = regexp.MustCompile(`\b(0|90|180|270)\b`)

// Result is the outcome of correcting a single image.
type Result struct {
	Rotated     int    `json:"rotated"`
	URL         string `json:"url"`
	OriginalURL string `json:"originalUrl,omitempty"`
}

// BatchItem is one entry of an orient-all run, in manifest order.
type BatchItem struct {
	URL     string `json:"url"`
	Rotated int    `json:"rotated"`
	NewURL  string `json:"newUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Service struct {
	store  *session.Store
	vision llm.VisionClient
	logger *slog.Logger
}

func NewService(store *session.Store, vision llm.VisionClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, vision: vision, logger: logger}
}

// DetectOrientation asks the vision model for the image's current rotation.
// Detection is best-effort: any failure (unconfigured key, call error,
// unparseable answer) yields 0, never an error.
func (s *Service) DetectOrientation(ctx context.Context, data []byte, mimeType string) int {
	if s.vision == nil || !s.vision.Configured() {
		s.logger.Warn("orient.detect.skipped", "reason", "vision client not configured")
		return 0
	}

	start := time.Now()
	text, err := s.vision.CompleteVision(ctx, llm.OrientationPrompt, []string{llm.EncodeDataURL(data, mimeType)})
	if err != nil {
		s.logger.Warn("orient.detect.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return 0
	}

	m := reAngle.FindString(strings.TrimSpace(text))
	if m == "" {
		s.logger.Warn("orient.detect.unparseable", "response", text)
		return 0
	}
	angle, _ := strconv.Atoi(m)
	s.logger.Info("orient.detect.ok", "rotation", angle, "elapsed_ms", time.Since(start).Milliseconds())
	return angle
}

// Correct detects the rotation and, when nonzero, applies the complementary
// physical rotation (detected 90 -> rotate 270, 180 -> 180, 270 -> 90): the
// rotation primitive turns counter-clockwise while the detector reports how
// far the scan is turned clockwise from upright.
func (s *Service) Correct(ctx context.Context, data []byte, mimeType string) ([]byte, int, error) {
	detected := s.DetectOrientation(ctx, data, mimeType)
	if detected == 0 {
		return data, 0, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	corrected := applyRotation(img, complementaryAngle(detected))

	format, err := formatForMIME(mimeType)
	if err != nil {
		return nil, 0, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, corrected, format); err != nil {
		return nil, 0, fmt.Errorf("encode corrected image: %w", err)
	}
	return buf.Bytes(), detected, nil
}

// OrientOne corrects a single stored image. A new {base}_oriented{ext} file
// is written into the same subdir only when a rotation was applied.
func (s *Service) OrientOne(ctx context.Context, sessionID, imageURL string) (*Result, error) {
	id, subdir, name, err := session.SplitURL(imageURL)
	if err != nil {
		return nil, err
	}
	if id != sessionID {
		return nil, common.InvalidInputError("imageUrl does not belong to session " + sessionID)
	}

	data, mimeType, err := s.store.ReadFile(imageURL)
	if err != nil {
		return nil, err
	}
	if !constants.IsImageMIME(mimeType) {
		return nil, common.InvalidInputError("not an image: " + imageURL)
	}

	corrected, rotated, err := s.Correct(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	if rotated == 0 {
		return &Result{Rotated: 0, URL: imageURL}, nil
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	oriented := base + orientedMarker + filepath.Ext(name)
	sf, err := s.store.StoreFile(sessionID, subdir, oriented, corrected, "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("orient.corrected", "session_id", sessionID, "url", imageURL,
		"rotation", rotated, "new_url", sf.URL)
	return &Result{Rotated: rotated, URL: sf.URL, OriginalURL: imageURL}, nil
}

// OrientAll corrects every image in the session's three subfolders, skipping
// non-images and previously corrected files. Each file is processed
// independently; a per-file failure lands in that item's Error and the batch
// continues.
func (s *Service) OrientAll(ctx context.Context, sessionID string) ([]BatchItem, error) {
	details, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var results []BatchItem
	for _, files := range [][]session.StoredFile{details.Originals, details.Extracted, details.Converted} {
		for _, f := range files {
			if !constants.IsImageMIME(f.MIMEType) || strings.Contains(f.Name, orientedMarker) {
				continue
			}
			item := BatchItem{URL: f.URL}
			r, err := s.OrientOne(ctx, sessionID, f.URL)
			if err != nil {
				item.Error = err.Error()
				s.logger.Warn("orient.all.item_failed", "session_id", sessionID, "url", f.URL, "error", err)
			} else {
				item.Rotated = r.Rotated
				if r.Rotated != 0 {
					item.NewURL = r.URL
				}
			}
			results = append(results, item)
		}
	}

	s.logger.Info("orient.all.done", "session_id", sessionID, "processed", len(results))
	return results, nil
}

// complementaryAngle maps a detected rotation onto the physical rotation that
// undoes it under the primitive's opposite convention.
func complementaryAngle(detected int) int {
	switch detected {
	case 90:
		return 270
	case 180:
		return 180
	case 270:
		return 90
	default:
		return 0
	}
}

func applyRotation(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

func formatForMIME(mimeType string) (imaging.Format, error) {
	switch mimeType {
	case "image/jpeg":
		return imaging.JPEG, nil
	case "image/png":
		return imaging.PNG, nil
	case "image/gif":
		return imaging.GIF, nil
	case "image/tiff":
		return imaging.TIFF, nil
	case "image/bmp":
		return imaging.BMP, nil
	default:
		return 0, fmt.Errorf("unsupported image format for rotation: %s", mimeType)
	}
}
