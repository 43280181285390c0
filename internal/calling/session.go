package calling

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cuboid-ai/callingbot/internal/voice"
	"github.com/cuboid-ai/callingbot/pkg/provider/stt"
)

const (
	// historyMax is the history length that triggers a trim.
	historyMax = 20

	// historyTrim is how many of the oldest entries one trim removes. Batch
	// trimming keeps the append path cheap instead of evicting on every turn.
	historyTrim = 10

	// contextLines is how many trailing history entries form the
	// conversational context for the reasoning backend.
	contextLines = 5
)

// Session is the per-call mutable state: mute flag, audio-active flag,
// rolling conversation history, and the handles for the call's recognition
// stream and synthesis. Sessions are created and destroyed only by the
// [Orchestrator]; the voice pipeline mutates fields of a session it is
// handed by reference.
//
// Session is safe for concurrent use.
type Session struct {
	callID    string
	startedAt time.Time
	speaker   *voice.Speaker

	mu          sync.Mutex
	muted       bool
	audioActive bool
	history     []string
	recognition stt.SessionHandle
	cancel      context.CancelFunc
	closed      bool
}

// newSession creates a Session for an answered call. recognition may be nil
// when the audio pipeline could not be initialised; cancel tears down the
// call-scoped context on Close.
func newSession(callID string, speaker *voice.Speaker, recognition stt.SessionHandle, cancel context.CancelFunc) *Session {
	return &Session{
		callID:      callID,
		startedAt:   time.Now(),
		speaker:     speaker,
		recognition: recognition,
		audioActive: recognition != nil,
		cancel:      cancel,
	}
}

// ID returns the call identifier.
func (s *Session) ID() string { return s.callID }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Speaker returns the call's synthesis queue.
func (s *Session) Speaker() *voice.Speaker { return s.speaker }

// Muted reports whether brain-bound content is suppressed.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetMuted updates the mute flag.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// AudioActive reports whether the call's recognition stream is running.
func (s *Session) AudioActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioActive
}

// AppendTurn records one user/assistant exchange. Once the history exceeds
// historyMax entries the oldest historyTrim entries are dropped in one batch.
func (s *Session) AppendTurn(utterance, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, "user: "+utterance, "assistant: "+response)
	if len(s.history) > historyMax {
		s.history = append([]string(nil), s.history[historyTrim:]...)
	}
}

// RecentContext returns the last contextLines history entries joined in
// order, used as conversational context for the reasoning backend.
func (s *Session) RecentContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.history) - contextLines
	if start < 0 {
		start = 0
	}
	return strings.Join(s.history[start:], "\n")
}

// HistoryLen returns the current history length.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Close releases the session's resources: it cancels any in-flight
// synthesis, stops the call-scoped context, and closes the recognition
// stream exactly once. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.audioActive = false
	recognition := s.recognition
	s.recognition = nil
	s.mu.Unlock()

	s.speaker.StopCurrent()
	if s.cancel != nil {
		s.cancel()
	}
	if recognition != nil {
		return recognition.Close()
	}
	return nil
}

// Ensure Session satisfies the voice pipeline's session contract.
var _ voice.Session = (*Session)(nil)
