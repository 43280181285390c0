// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to feed controlled audio to consumers and to verify the
// text and voice passed to the TTS backend.
//
// Example:
//
//	s := &mock.Synthesizer{Audio: []byte("fake-pcm")}
//	audio, _ := s.Synthesize(ctx, "Hello", "en-GB-LibbyNeural")
package mock

import (
	"context"
	"sync"

	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice name passed to Synthesize.
	Voice string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when SynthesizeFunc is nil.
	Audio []byte

	// Err, if non-nil, is returned by Synthesize instead of Audio.
	Err error

	// SynthesizeFunc, if set, fully overrides the Synthesize behaviour.
	SynthesizeFunc func(ctx context.Context, text string, voice string) ([]byte, error)

	calls []SynthesizeCall
}

// Synthesize records the call and returns the configured audio or error.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SynthesizeCall{Text: text, Voice: voice})
	fn := s.SynthesizeFunc
	audio, err := s.Audio, s.Err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Calls returns a copy of all recorded Synthesize invocations in order.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
