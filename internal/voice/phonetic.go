package voice

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// PhoneticOption is a functional option for configuring a [PhoneticMatcher].
type PhoneticOption func(*PhoneticMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched token to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) PhoneticOption {
	return func(m *PhoneticMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// token has no phonetic overlap with the target and the matcher falls back to
// pure string similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) PhoneticOption {
	return func(m *PhoneticMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// PhoneticMatcher decides whether a recognised token is a plausible
// misrecognition of a target word, using Double Metaphone phonetic codes
// combined with Jaro-Winkler similarity for ranking.
//
// Speech recognisers regularly mangle invented product names; "cuboid" comes
// back as "cube oid", "kew boyd", or "cuboyd". A phonetic code overlap plus a
// moderate similarity score accepts those, while unrelated words that merely
// share letters are rejected by the higher fuzzy threshold.
//
// All methods are safe for concurrent use — the matcher is read-only after
// construction.
type PhoneticMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewPhoneticMatcher returns a PhoneticMatcher configured with the supplied
// options. Default thresholds are 0.70 for phonetic matches and 0.85 for
// fuzzy fallback matches.
func NewPhoneticMatcher(opts ...PhoneticOption) *PhoneticMatcher {
	m := &PhoneticMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Matches reports whether token is phonetically close enough to target to be
// treated as the same word. Both inputs are compared case-insensitively.
func (m *PhoneticMatcher) Matches(token, target string) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	target = strings.ToLower(strings.TrimSpace(target))
	if token == "" || target == "" {
		return false
	}
	if token == target {
		return true
	}

	score := matchr.JaroWinkler(token, target, false)
	if codesOverlap(token, target) {
		return score >= m.phoneticThreshold
	}
	return score >= m.fuzzyThreshold
}

// codesOverlap returns true if the two words share at least one Double
// Metaphone code. Empty codes (word too short or no consonants) are ignored.
func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, ca := range []string{ap, as} {
		if ca == "" {
			continue
		}
		for _, cb := range []string{bp, bs} {
			if cb != "" && ca == cb {
				return true
			}
		}
	}
	return false
}
