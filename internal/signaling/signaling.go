// Package signaling defines the client interface to the call signaling
// collaborator: answering, rejecting, and hanging up calls. The wire-level
// transport lives in the graphapi subpackage; tests use the mock subpackage.
package signaling

import "context"

// ModalityAudio requests audio-only capability when answering a call.
const ModalityAudio = "audio"

// RejectReason is the reason supplied when declining an incoming call.
type RejectReason string

const (
	// RejectBusy tells the remote party the bot cannot take the call.
	RejectBusy RejectReason = "busy"

	// RejectNone declines without a specific reason.
	RejectNone RejectReason = "none"
)

// Client is the abstraction over the signaling transport.
//
// Implementations must be safe for concurrent use; the orchestrator issues
// actions for distinct calls concurrently.
type Client interface {
	// Answer accepts the incoming call, registering callbackURI for
	// follow-up notifications and requesting the given media modalities.
	Answer(ctx context.Context, callID, callbackURI string, modalities []string) error

	// Reject declines the incoming call with the given reason.
	Reject(ctx context.Context, callID string, reason RejectReason) error

	// Hangup terminates an answered call.
	Hangup(ctx context.Context, callID string) error
}
