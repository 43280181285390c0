// Package mock provides a test double for the signaling.Client interface.
package mock

import (
	"context"
	"sync"

	"github.com/cuboid-ai/callingbot/internal/signaling"
)

// Action records a single signaling action.
type Action struct {
	// Kind is "answer", "reject", or "hangup".
	Kind string
	// CallID is the call the action targeted.
	CallID string
	// CallbackURI is set for answer actions.
	CallbackURI string
	// Modalities is set for answer actions.
	Modalities []string
	// Reason is set for reject actions.
	Reason signaling.RejectReason
}

// Client is a mock implementation of signaling.Client.
type Client struct {
	mu sync.Mutex

	// AnswerErr, RejectErr, and HangupErr configure the returned errors.
	AnswerErr error
	RejectErr error
	HangupErr error

	actions []Action
}

// Answer records the call and returns AnswerErr.
func (c *Client) Answer(_ context.Context, callID, callbackURI string, modalities []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	mods := make([]string, len(modalities))
	copy(mods, modalities)
	c.actions = append(c.actions, Action{
		Kind:        "answer",
		CallID:      callID,
		CallbackURI: callbackURI,
		Modalities:  mods,
	})
	return c.AnswerErr
}

// Reject records the call and returns RejectErr.
func (c *Client) Reject(_ context.Context, callID string, reason signaling.RejectReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, Action{Kind: "reject", CallID: callID, Reason: reason})
	return c.RejectErr
}

// Hangup records the call and returns HangupErr.
func (c *Client) Hangup(_ context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, Action{Kind: "hangup", CallID: callID})
	return c.HangupErr
}

// Actions returns a copy of all recorded actions in order.
func (c *Client) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// ActionsOf returns the recorded actions of one kind, in order.
func (c *Client) ActionsOf(kind string) []Action {
	var out []Action
	for _, a := range c.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Reset clears all recorded actions. Thread-safe.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = nil
}

// Ensure Client implements signaling.Client at compile time.
var _ signaling.Client = (*Client)(nil)
