package brain

import (
	"encoding/json"
	"strings"
)

// Strategy is one way of pulling the speech string out of a decoded response
// document. Strategies are tried in order; the first that yields a non-empty
// string wins.
type Strategy struct {
	// Name is a short label for logging and tests.
	Name string

	// Extract returns the speech string and true when doc matches this shape.
	Extract func(doc map[string]any) (string, bool)
}

// DefaultStrategies is the ordered list of response shapes tolerated from
// reasoning backends. Upstreams are not consistent about their envelope: some
// return a flat field, some nest the reply under "data" or "message", and
// OpenAI-compatible proxies return a choices array.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "flat-field", Extract: flatField("speech", "text", "response", "message", "reply")},
		{Name: "data-speech", Extract: nestedField("data", "speech")},
		{Name: "message-content", Extract: nestedField("message", "content")},
		{Name: "choice-array", Extract: choiceArray},
	}
}

// ExtractSpeech decodes body as JSON and applies strategies in order.
// It returns the extracted speech, the name of the matching strategy, and
// whether any strategy matched. A body that is not a JSON object, or that
// matches no strategy with a non-empty string, reports no match.
func ExtractSpeech(body []byte, strategies []Strategy) (speech, strategy string, ok bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", "", false
	}
	for _, s := range strategies {
		if text, matched := s.Extract(doc); matched && strings.TrimSpace(text) != "" {
			return text, s.Name, true
		}
	}
	return "", "", false
}

// flatField matches a top-level string value under the first present key.
func flatField(keys ...string) func(map[string]any) (string, bool) {
	return func(doc map[string]any) (string, bool) {
		for _, key := range keys {
			if text, ok := doc[key].(string); ok && text != "" {
				return text, true
			}
		}
		return "", false
	}
}

// nestedField matches a string value one object level down: doc[outer][inner].
func nestedField(outer, inner string) func(map[string]any) (string, bool) {
	return func(doc map[string]any) (string, bool) {
		obj, ok := doc[outer].(map[string]any)
		if !ok {
			return "", false
		}
		text, ok := obj[inner].(string)
		return text, ok && text != ""
	}
}

// choiceArray matches the OpenAI chat-completions shape:
// choices[0].message.content.
func choiceArray(doc map[string]any) (string, bool) {
	choices, ok := doc["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := msg["content"].(string)
	return text, ok && text != ""
}
