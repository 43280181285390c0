// Package mock provides test doubles for the stt.Recognizer and
// stt.SessionHandle interfaces.
//
// Use Recognizer to hand out scripted sessions, and Session.Emit to push
// recognition finals to the consumer under test.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/cuboid-ai/callingbot/pkg/provider/stt"
)

// ErrSessionClosed is returned by SendAudio after Close.
var ErrSessionClosed = errors.New("mock: session closed")

// Session is a mock implementation of stt.SessionHandle.
type Session struct {
	mu     sync.Mutex
	finals chan stt.Final
	audio  [][]byte
	closed bool

	// CallID is the call the session was opened for.
	CallID string
}

// NewSession creates a ready Session for the given call.
func NewSession(callID string) *Session {
	return &Session{
		CallID: callID,
		finals: make(chan stt.Final, 16),
	}
}

// Emit pushes a recognition final to the Finals channel. Returns false if the
// session is already closed.
func (s *Session) Emit(f stt.Final) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.finals <- f
	return true
}

// SendAudio records the chunk. Returns ErrSessionClosed after Close.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	return nil
}

// Audio returns a copy of all audio chunks received so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// Finals returns the channel Emit feeds.
func (s *Session) Finals() <-chan stt.Final {
	return s.finals
}

// Close closes the Finals channel. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.finals)
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by StartSession.
	StartErr error

	sessions []*Session
}

// StartSession creates and records a new Session for callID.
func (r *Recognizer) StartSession(ctx context.Context, callID string, cfg stt.SessionConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	s := NewSession(callID)
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Sessions returns all sessions handed out so far, in order.
func (r *Recognizer) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Compile-time interface checks.
var (
	_ stt.Recognizer    = (*Recognizer)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)
