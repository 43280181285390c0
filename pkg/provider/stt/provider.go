// Package stt defines the Recognizer interface for Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription service and exposes a
// uniform per-call streaming interface. The central abstraction is
// SessionHandle: once opened for a call, a session accepts raw PCM audio
// frames from the meeting and emits authoritative Final values with speaker
// attribution. The voice pipeline consumes only finals; interim hypotheses
// never reach the wake-phrase detector.
//
// Implementations must be safe for concurrent use. One session is open per
// active call.
package stt

import "context"

// Final is an authoritative recognition result for a single utterance.
type Final struct {
	// CallID identifies the call the utterance was captured on.
	CallID string

	// Speaker is the display name of the participant who spoke, when the
	// provider can attribute it. Empty when attribution is unavailable.
	Speaker string

	// Text is the recognised utterance.
	Text string
}

// SessionConfig describes the audio format and recognition hints for a new
// recognition session.
type SessionConfig struct {
	// SampleRate is the audio sample rate in Hz. Call media is 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string
}

// SessionHandle represents an open recognition session for one call. It is an
// interface so that test code can provide mock implementations without a live
// provider connection.
//
// Callers must call Close when the call ends. All methods must be safe for
// concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Finals returns a read-only channel that emits authoritative Final
	// values once the provider has committed to a recognition result. The
	// channel is closed when the session ends.
	Finals() <-chan Final

	// Close terminates the session, flushes any pending audio, and releases
	// all associated resources. After Close returns, the Finals channel is
	// closed. Calling Close more than once is safe and returns nil.
	Close() error
}

// Recognizer is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously, one per active call.
type Recognizer interface {
	// StartSession opens a new streaming recognition session for the given
	// call. The returned SessionHandle is ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure or ctx already cancelled). The caller owns the
	// SessionHandle and must call Close when done.
	StartSession(ctx context.Context, callID string, cfg SessionConfig) (SessionHandle, error)
}
