// Package payload extracts the structured message embedded in a raw Arena
// log entry. Log entries are free text with a JSON value somewhere inside,
// and several client versions wrap the interesting object in one or more
// layers of serialized-JSON envelope fields.
package payload

import (
	"encoding/json"
	"strings"
)

// Envelope fields whose value may be a recursively serialized message.
var envelopeKeys = []string{"payload", "Payload", "request"}

// Extract locates the first JSON value in the raw message text, decodes it,
// and unwraps nested envelopes until a flat object is reached. Returns nil
// when the text holds no decodable JSON object; partial and non-JSON
// messages are common and expected.
func Extract(raw string) map[string]any {
	idx := strings.IndexAny(raw, "[{")
	if idx < 0 {
		return nil
	}

	value, ok := decodeFirst(raw[idx:])
	if !ok {
		return nil
	}

	flattened := unwrap(value)
	obj, ok := flattened.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

// decodeFirst decodes a single JSON value from the start of s, ignoring any
// trailing text. Numbers are kept as json.Number so .NET tick timestamps
// survive without float truncation.
func decodeFirst(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	return value, true
}

// unwrap recursively decodes envelope fields. Client-to-match-service
// messages are exempt: their own fields are the payload of interest.
func unwrap(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	if _, ok := obj["clientToMatchServiceMessageType"]; ok {
		return obj
	}

	for _, key := range envelopeKeys {
		inner, ok := obj[key]
		if !ok {
			continue
		}
		if s, isString := inner.(string); isString {
			if decoded, ok := decodeFirst(s); ok {
				return unwrap(decoded)
			}
			// Not valid JSON; use the raw string as-is.
			return s
		}
		return unwrap(inner)
	}

	return obj
}
