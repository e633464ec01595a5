// Package extract runs vision-model field extraction over stored page images.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/llm"
	"github.com/quarryops/ticketscan/internal/session"
)

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

// ExtractOne sends one image (stored-file URL or data URL) through the fixed
// extraction prompt and normalizes the response into a Ticket. A response
// that yields no parseable JSON object is an extraction error.
func (s *Service) ExtractOne(ctx context.Context, imageRef string) (*Ticket, error) {
	start := time.Now()

	dataURL, err := s.resolveImage(imageRef)
	if err != nil {
		return nil, err
	}

	text, err := s.vision.CompleteVision(ctx, llm.ExtractionPrompt(), []string{dataURL})
	if err != nil {
		return nil, err
	}

	block, err := llm.FirstJSONObject(text)
	if err != nil {
		s.logger.Error("extract.parse_failed", "image", imageRef, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}
	raw, err := llm.ParseTicketJSON(block)
	if err != nil {
		s.logger.Error("extract.invalid_response", "image", imageRef, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}

	ticket := buildTicket(imageRef, raw)
	s.logger.Info("extract.ok",
		"image", imageRef,
		"ticket_id", ticket.ID,
		"overall_confidence", ticket.OverallConfidence,
		"status", ticket.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ticket, nil
}

// ExtractBatch applies ExtractOne to each URL independently: per-URL errors
// are collected and never abort the remaining items. Ticket and error order
// follows input order.
func (s *Service) ExtractBatch(ctx context.Context, imageRefs []string) ([]*Ticket, []BatchError) {
	tickets := make([]*Ticket, 0, len(imageRefs))
	var errs []BatchError

	for _, ref := range imageRefs {
		t, err := s.ExtractOne(ctx, ref)
		if err != nil {
			errs = append(errs, BatchError{ImageURL: ref, Error: err.Error()})
			continue
		}
		tickets = append(tickets, t)
	}

	s.logger.Info("extract.batch.done", "requested", len(imageRefs),
		"tickets", len(tickets), "errors", len(errs))
	return tickets, errs
}

// Analyze sends one or more images with a free-form prompt and returns the
// model's text verbatim. Separate from structured extraction.
func (s *Service) Analyze(ctx context.Context, imageRefs []string, prompt string) (string, error) {
	if len(imageRefs) == 0 {
		return "", common.InvalidInputError("images are required")
	}
	dataURLs := make([]string, 0, len(imageRefs))
	for _, ref := range imageRefs {
		u, err := s.resolveImage(ref)
		if err != nil {
			return "", err
		}
		dataURLs = append(dataURLs, u)
	}
	return s.vision.CompleteVision(ctx, llm.AnalysisPrompt(prompt), dataURLs)
}

// resolveImage passes data URLs through and reads stored-file URLs from the
// session store.
func (s *Service) resolveImage(ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	data, mimeType, err := s.store.ReadFile(ref)
	if err != nil {
		return "", err
	}
	if !constants.IsImageMIME(mimeType) {
		return "", common.InvalidInputError("not an image: " + ref)
	}
	return llm.EncodeDataURL(data, mimeType), nil
}

// buildTicket normalizes raw model fields into the fixed field set and
// derives review metadata.
func buildTicket(imageRef string, raw map[string]llm.RawField) *Ticket {
	fields := make(map[string]Field, len(constants.TicketFieldNames))
	sum, nonzero := 0, 0

	for _, name := range constants.TicketFieldNames {
		f := Field{}
		if rf, ok := raw[name]; ok {
			f.Value = rawValueString(rf.Value)
			f.Confidence = clampConfidence(rf.Confidence)
		}
		f.NeedsReview = f.Confidence > 0 && f.Confidence < constants.ReviewThreshold
		fields[name] = f

		if f.Confidence > 0 {
			sum += f.Confidence
			nonzero++
		}
	}

	overall := 0
	if nonzero > 0 {
		overall = int(math.Round(float64(sum) / float64(nonzero)))
	}
	status := constants.TicketStatusPending
	if overall < constants.ReviewThreshold {
		status = constants.TicketStatusFlagged
	}

	return &Ticket{
		ID:                uuid.New().String(),
		ImageURL:          imageRef,
		Fields:            fields,
		OverallConfidence: overall,
		Status:            status,
		ExtractedAt:       time.Now().UTC(),
	}
}

// rawValueString renders a model-reported value (string, number, or null)
// as the string the review UI edits.
func rawValueString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", n), "0"), ".")
	}
	return ""
}

func clampConfidence(c float64) int {
	switch {
	case c <= 0 || math.IsNaN(c):
		return 0
	case c >= 100:
		return 100
	default:
		return int(math.Round(c))
	}
}
