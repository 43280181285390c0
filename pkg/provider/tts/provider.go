// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Azure Cognitive
// Services or ElevenLabs) and presents a uniform buffer-returning interface:
// text in, encoded audio bytes out. The call media layer treats the returned
// audio as an opaque buffer; codec handling is out of scope.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per active call).
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text as speech using the named voice and returns
	// the encoded audio. voice is provider-specific (an Azure voice name, an
	// ElevenLabs voice ID); an empty voice selects the provider default.
	//
	// Implementations must respect ctx cancellation: a cancelled context
	// aborts synthesis promptly and returns ctx.Err(). Returns an error for
	// empty text rather than producing silent audio.
	Synthesize(ctx context.Context, text string, voice string) ([]byte, error)
}
