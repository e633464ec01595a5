package extract

import (
	"time"

	"github.com/quarryops/ticketscan/constants"
)

// Field is one extracted ticket field after normalization.
type Field struct {
	Value       string `json:"value"`
	Confidence  int    `json:"confidence"`
	NeedsReview bool   `json:"needsReview"`
}

// Ticket is the structured result of extracting one page image. Every name
// in constants.TicketFieldNames is present in Fields; absent values carry an
// empty string and confidence 0.
type Ticket struct {
	ID                string                 `json:"id"`
	ImageURL          string                 `json:"imageUrl"`
	Fields            map[string]Field       `json:"fields"`
	OverallConfidence int                    `json:"overallConfidence"`
	Status            constants.TicketStatus `json:"status"`
	ExtractedAt       time.Time              `json:"extractedAt"`
}

// BatchError reports one failed item of an extract-batch run.
type BatchError struct {
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error"`
}
