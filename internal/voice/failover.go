package voice

import (
	"context"

	"github.com/cuboid-ai/callingbot/internal/resilience"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

// FailoverSynthesizer keeps the bot speaking when the primary synthesis
// provider degrades. Providers are tried in registration order, each behind
// its own circuit breaker; a provider with an open breaker is skipped until
// its reset timeout elapses.
type FailoverSynthesizer struct {
	group *resilience.FallbackGroup[tts.Synthesizer]
}

// NewFailoverSynthesizer creates a FailoverSynthesizer with primary as the
// first provider. name labels the provider in logs.
func NewFailoverSynthesizer(name string, primary tts.Synthesizer, cfg resilience.FallbackConfig) *FailoverSynthesizer {
	return &FailoverSynthesizer{
		group: resilience.NewFallbackGroup(primary, name, cfg),
	}
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (f *FailoverSynthesizer) AddFallback(name string, s tts.Synthesizer) {
	f.group.AddFallback(name, s)
}

// Synthesize implements [tts.Synthesizer] across the provider chain.
func (f *FailoverSynthesizer) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	return resilience.ExecuteWithResult(f.group, func(s tts.Synthesizer) ([]byte, error) {
		return s.Synthesize(ctx, text, voice)
	})
}

var _ tts.Synthesizer = (*FailoverSynthesizer)(nil)
