// Package mock provides a scriptable [brain.Responder] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/cuboid-ai/callingbot/internal/brain"
)

// Responder is a test double for brain.Responder. Configure RespondFunc to
// script behaviour; by default every utterance is echoed back. All recorded
// state is safe for concurrent access.
type Responder struct {
	mu          sync.Mutex
	requests    []brain.Request
	RespondFunc func(ctx context.Context, req brain.Request) (brain.Response, error)
}

// Respond implements brain.Responder.
func (m *Responder) Respond(ctx context.Context, req brain.Request) (brain.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.RespondFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return brain.Response{Speech: "echo: " + req.Utterance}, nil
}

// Requests returns a copy of all requests seen so far.
func (m *Responder) Requests() []brain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]brain.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
