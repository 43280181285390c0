// Package brain defines the contract for the remote reasoning service that
// turns a recognised utterance plus conversation context into a spoken reply.
//
// Implementations absorb their own failures: when the backend is unreachable,
// returns a non-success status, or produces an unparseable body, Respond
// substitutes [FallbackSpeech] instead of surfacing an error. A call must
// never crash or stall because the brain is down.
package brain

import "context"

// FallbackSpeech is spoken when the reasoning backend cannot produce a reply.
const FallbackSpeech = "I'm having trouble connecting to my compliance knowledge right now. Could you repeat that in a moment?"

// Constraints carries response-shaping hints sent with every request.
type Constraints struct {
	// MaxVoiceSecs is the requested upper bound on spoken-response duration,
	// in seconds. A hint, not a guarantee.
	MaxVoiceSecs int `json:"maxVoiceSecs"`
}

// Request is one utterance submitted for reasoning.
type Request struct {
	// MeetingID identifies the call the utterance was heard in.
	MeetingID string `json:"meetingId"`

	// Speaker is the diarization tag of whoever spoke. Defaults to
	// "Unknown Speaker" upstream; diarization is out of scope here.
	Speaker string `json:"speaker"`

	// Utterance is the wake-phrase-stripped text to respond to.
	Utterance string `json:"utterance"`

	// History is the trailing conversation context, newline-joined.
	History string `json:"history"`

	Constraints Constraints `json:"constraints"`
}

// Response is the reasoning backend's reply.
type Response struct {
	// Speech is the text to synthesize into the call.
	Speech string `json:"speech"`

	// Chat is an optional text-channel variant of the reply.
	Chat string `json:"chat,omitempty"`

	// Actions lists follow-up actions the backend requested. Unused by the
	// voice pipeline today; carried through for operators.
	Actions []string `json:"actions,omitempty"`

	// Fallback reports whether Speech is [FallbackSpeech] because the
	// backend failed.
	Fallback bool `json:"-"`
}

// Responder is the abstraction over any reasoning backend.
//
// Implementations must be safe for concurrent use from multiple call
// sessions and must hold no per-session mutable state. Respond returns an
// error only when ctx is cancelled; backend failures yield the fallback
// response with a nil error.
type Responder interface {
	Respond(ctx context.Context, req Request) (Response, error)
}

// Fallback returns the fixed response used when a backend fails.
func Fallback() Response {
	return Response{Speech: FallbackSpeech, Fallback: true}
}
