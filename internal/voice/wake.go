// Package voice implements the per-call voice interaction pipeline: wake
// phrase detection on recognition finals, control command handling, routing
// of content to the reasoning backend, and interruptible speech synthesis
// (barge-in).
package voice

import "strings"

// DefaultWakePhrase is the activation word listened for when no phrase is
// configured.
const DefaultWakePhrase = "cuboid"

// DetectorOption is a functional option for configuring a [Detector].
type DetectorOption func(*Detector)

// WithPhoneticMatcher enables phonetic tolerance for misrecognised wake
// words ("kew boyd" for "cuboid"). Off by default; the plain substring
// contract is unchanged when the matcher does not fire.
func WithPhoneticMatcher(m *PhoneticMatcher) DetectorOption {
	return func(d *Detector) {
		d.phonetic = m
	}
}

// Detector scans recognised speech for the configured wake phrase and
// extracts the trailing utterance.
//
// Detector is stateless after construction and safe for concurrent use
// across calls.
type Detector struct {
	phrase   string
	phonetic *PhoneticMatcher
}

// NewDetector creates a Detector for the given wake phrase. An empty phrase
// falls back to [DefaultWakePhrase].
func NewDetector(phrase string, opts ...DetectorOption) *Detector {
	if strings.TrimSpace(phrase) == "" {
		phrase = DefaultWakePhrase
	}
	d := &Detector{phrase: strings.ToLower(phrase)}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Phrase returns the configured wake phrase, lowercased.
func (d *Detector) Phrase() string {
	return d.phrase
}

// Detect reports whether the wake phrase occurs anywhere in text
// (case-insensitive substring, not token-boundary aware) and, if so, returns
// the text following the first occurrence with leading commas, periods, and
// spaces stripped. Empty or whitespace-only input is never a detection.
func (d *Detector) Detect(text string) (utterance string, detected bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	lower := strings.ToLower(text)
	if idx := strings.Index(lower, d.phrase); idx >= 0 {
		return trimUtterance(text[idx+len(d.phrase):]), true
	}

	if d.phonetic != nil {
		if rest, ok := d.phoneticDetect(text); ok {
			return rest, true
		}
	}
	return "", false
}

// phoneticDetect scans token by token for a phonetic wake-word match and
// returns everything after the matching token.
func (d *Detector) phoneticDetect(text string) (string, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		token := strings.ToLower(strings.Trim(f, ",."))
		if token == "" {
			continue
		}
		if d.phonetic.Matches(token, d.phrase) {
			return trimUtterance(strings.Join(fields[i+1:], " ")), true
		}
	}
	return "", false
}

// trimUtterance strips the punctuation and whitespace that typically follow
// a spoken wake word.
func trimUtterance(s string) string {
	return strings.TrimLeft(s, ",. ")
}
