// Package transcript persists the per-call conversation log: one entry per
// spoken line, keyed by call ID. The voice pipeline records entries as turns
// complete; the HTTP surface reads them back for review.
package transcript

import (
	"context"
	"time"
)

// Entry is one recorded line of a call.
type Entry struct {
	// CallID identifies the call the line belongs to.
	CallID string `json:"callId"`

	// Speaker is the participant tag, or "assistant" for bot responses.
	Speaker string `json:"speaker"`

	// Text is the spoken line.
	Text string `json:"text"`

	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists and retrieves transcript entries. Record matches the voice
// pipeline's recorder contract, so any Store can be wired in directly.
type Store interface {
	// Record appends one line to the call's transcript.
	Record(ctx context.Context, callID, speaker, text string) error

	// Recent returns the call's newest entries in chronological order.
	// A non-positive limit returns the full transcript.
	Recent(ctx context.Context, callID string, limit int) ([]Entry, error)
}
