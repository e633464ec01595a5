package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ticketResponseSchema constrains the model's extraction output: an object
// whose members are {value, confidence} pairs. Validation runs before
// decoding so malformed responses surface as extraction errors, never as
// silently-zeroed tickets.
const ticketResponseSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"properties": {
			"value": {"type": ["string", "number", "null"]},
			"confidence": {"type": ["number", "null"]}
		}
	}
}`

var ticketSchema = jsonschema.MustCompileString("ticket_response.json", ticketResponseSchema)

// RawField is one field as the model reports it, before normalization.
type RawField struct {
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
}

// FirstJSONObject returns the first top-level {...} block in the model's
// text, tolerating prose or markdown fences around it.
func FirstJSONObject(s string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return []byte(s[start : i+1]), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("no JSON object found in model response")
}

// ParseTicketJSON validates the extracted block against the response schema
// and decodes it into raw fields keyed by field name.
func ParseTicketJSON(raw []byte) (map[string]RawField, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if err := ticketSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("model response failed schema validation: %w", err)
	}

	var fields map[string]RawField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode ticket fields: %w", err)
	}
	return fields, nil
}

// EncodeDataURL wraps raw bytes as a data:<mime>;base64 URL for vision calls.
func EncodeDataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
