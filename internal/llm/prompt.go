package llm

import (
	"strings"

	"github.com/quarryops/ticketscan/constants"
)

// OrientationPrompt asks for the scan's current rotation as a bare number.
// The detector treats anything outside {0, 90, 180, 270} as 0.
const OrientationPrompt = "Look at this scanned document image. Determine its current rotation " +
	"so that the text would read left-to-right, top-to-bottom when corrected. " +
	"Respond with exactly one of these numbers and nothing else: 0, 90, 180, 270. " +
	"0 means the image is already upright."

// ExtractionPrompt builds the fixed instruction enumerating every ticket
// field and the per-field {value, confidence} response shape.
func ExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are reading a scanned material ticket (a weighbridge or haul receipt). ")
	b.WriteString("Extract the following fields exactly as printed: ")
	b.WriteString(strings.Join(constants.TicketFieldNames, ", "))
	b.WriteString(". Return ONLY a single JSON object mapping each field name to an object ")
	b.WriteString(`{"value": "<string>", "confidence": <0-100>}. `)
	b.WriteString("Use an empty string value and confidence 0 for fields not present on the ticket. ")
	b.WriteString("Confidence is how certain you are the value is read correctly. ")
	b.WriteString("Do not invent values, do not add fields, and do not wrap the JSON in markdown fences.")
	return b.String()
}

// AnalysisPrompt builds the free-form analysis instruction. A custom prompt
// from the caller replaces the default wholesale.
func AnalysisPrompt(custom string) string {
	if p := strings.TrimSpace(custom); p != "" {
		return p
	}
	return "Describe these scanned material tickets: document quality, legibility, " +
		"ticket types, and anything that would make field extraction unreliable."
}
